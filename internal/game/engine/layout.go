package engine

import (
	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// setupZones creates declared zones, or synthesizes them from the inferred
// layout when none are declared, then builds the shared pile.
func (e *Engine) setupZones() {
	if l := e.rules.Setup.TableLayout; l != nil && len(l.Zones) > 0 {
		for _, spec := range l.Zones {
			z := e.ensureZone(spec.ID, spec.Type)
			z.Name = spec.Name
			z.FaceDown = spec.FaceDown
			z.AcceptsDrops = spec.AcceptsDrops
			z.AcceptRule = spec.AcceptRule
			for _, c := range e.state.Deck.Deal(spec.InitialCards) {
				c.FaceUp = !spec.FaceDown
				z.Cards = append(z.Cards, c)
			}
		}
	} else {
		e.synthesizeZones()
	}

	if e.rules.Setup.SharedPile {
		pile := e.ensureZone(ZoneCentral, schema.ZonePile)
		pile.FaceDown = true
		for _, c := range e.state.Deck.Deal(e.state.Deck.Len()) {
			c.FaceUp = false
			pile.Cards = append(pile.Cards, c)
		}
	}
}

func (e *Engine) synthesizeZones() {
	switch e.class.Layout {
	case schema.LayoutSuitBased:
		for _, suit := range cards.Suits {
			z := e.ensureZone("foundation-"+string(suit), schema.ZonePile)
			z.AcceptsDrops = true
			z.AcceptRule = "suit:" + string(suit)
		}
	case schema.LayoutSequence:
		e.ensureZone(ZonePlayArea, schema.ZoneSequence).AcceptsDrops = true
	case schema.LayoutScattered:
		grid := e.ensureZone(ZoneMemoryGrid, schema.ZoneGrid)
		grid.FaceDown = true
		if e.class.Has(schema.TagMemoryMatch) {
			for _, c := range e.state.Deck.Deal(e.state.Deck.Len()) {
				c.FaceUp = false
				grid.Cards = append(grid.Cards, c)
			}
		}
	case schema.LayoutPile:
		e.ensureZone(ZoneCenter, schema.ZonePile).AcceptsDrops = true
	case schema.LayoutCustom:
		e.ensureZone(ZoneBattlefield, schema.ZoneCustom).AcceptsDrops = true
	}
	if e.logger != nil {
		e.logger.Debug("table layout synthesized",
			zap.String("session_id", e.state.ID),
			zap.String("layout", string(e.class.Layout)),
			zap.Int("zones", len(e.state.Zones)),
		)
	}
}

// ensureZone returns the zone with id, creating it when missing.
func (e *Engine) ensureZone(id, kind string) *Zone {
	if z := e.state.Zone(id); z != nil {
		return z
	}
	if kind == "" {
		kind = schema.ZoneCustom
	}
	z := &Zone{ID: id, Name: id, Type: kind}
	e.state.Zones = append(e.state.Zones, z)
	return z
}

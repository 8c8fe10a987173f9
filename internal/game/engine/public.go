package engine

import (
	"fmt"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
)

// View is the state as one viewer may see it.
type View struct {
	SessionID      string        `json:"sessionId"`
	ViewerID       string        `json:"viewerId,omitempty"`
	GameName       string        `json:"gameName"`
	Status         GameStatus    `json:"status"`
	Phase          string        `json:"phase"`
	PhaseIndex     int           `json:"phaseIndex"`
	Turn           int           `json:"turn"`
	Round          int           `json:"round"`
	CurrentPlayer  string        `json:"currentPlayer,omitempty"`
	Winner         string        `json:"winner,omitempty"`
	Players        []PlayerView  `json:"players"`
	Zones          []ZoneView    `json:"zones"`
	DeckCount      int           `json:"deckCount"`
	Discard        []*cards.Card `json:"discard"`
	Community      []*cards.Card `json:"community"`
	Pot            int           `json:"pot,omitempty"`
	CurrentBet     int           `json:"currentBet,omitempty"`
	LastAction     *ActionResult `json:"lastAction,omitempty"`
	LastDrawn      *cards.Card   `json:"lastDrawn,omitempty"`
	EmergencyCards int           `json:"emergencyCards"`
}

// PlayerView is one seat. Hidden hands carry only their size and any cards
// already revealed.
type PlayerView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Kind        PlayerKind    `json:"kind"`
	Hand        []*cards.Card `json:"hand,omitempty"`
	HandCount   int           `json:"handCount"`
	HandHidden  bool          `json:"handHidden"`
	IsActive    bool          `json:"isActive"`
	Score       int           `json:"score"`
	Position    int           `json:"position"`
	Eliminated  bool          `json:"eliminated,omitempty"`
	Folded      bool          `json:"folded,omitempty"`
	Stood       bool          `json:"stood,omitempty"`
	Busted      bool          `json:"busted,omitempty"`
	CardsPlayed int           `json:"cardsPlayed"`
	Chips       int           `json:"chips,omitempty"`
	Bet         int           `json:"bet,omitempty"`
}

// ZoneView is a table zone with face-down cards replaced by references of the
// form "zone:<id>:<index>". Actions accept those references in place of ids.
type ZoneView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Cards        []*cards.Card `json:"cards"`
	FaceDown     bool          `json:"faceDown"`
	AcceptsDrops bool          `json:"acceptsDrops"`
	AcceptRule   string        `json:"acceptRule,omitempty"`
}

// ZoneRef is the masked reference of the card at index i of a zone.
func ZoneRef(zoneID string, i int) string {
	return fmt.Sprintf("zone:%s:%d", zoneID, i)
}

// PublicState builds the view for viewerID. Other players' hands are hidden;
// with no viewer only non-human hands are hidden.
func (e *Engine) PublicState(viewerID string) *View {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	v := &View{
		SessionID:      s.ID,
		ViewerID:       viewerID,
		GameName:       e.rules.Name,
		Status:         s.Status,
		Phase:          s.Phase,
		PhaseIndex:     s.PhaseIndex,
		Turn:           s.Turn,
		Round:          s.Round,
		Winner:         s.Winner,
		DeckCount:      s.DeckCount(),
		Discard:        cloneCards(s.Discard),
		Community:      cloneCards(s.Community),
		Pot:            s.Pot,
		CurrentBet:     s.CurrentBet,
		EmergencyCards: s.EmergencyCards,
	}
	if cur := s.Current(); cur != nil {
		v.CurrentPlayer = cur.ID
	}

	for _, p := range s.Players {
		pv := PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			Kind:        p.Kind,
			HandCount:   len(p.Hand),
			IsActive:    p.IsActive,
			Score:       p.Score,
			Position:    p.Position,
			Eliminated:  p.Eliminated,
			Folded:      p.Folded,
			Stood:       p.Stood,
			Busted:      p.Busted,
			CardsPlayed: p.CardsPlayed,
			Chips:       p.Chips,
			Bet:         p.Bet,
		}
		pv.HandHidden = p.ID != viewerID && (viewerID != "" || !p.IsHuman())
		if pv.HandHidden {
			for _, c := range p.Hand {
				if c.FaceUp {
					pv.Hand = append(pv.Hand, c.Clone())
				}
			}
		} else {
			pv.Hand = cloneCards(p.Hand)
		}
		v.Players = append(v.Players, pv)
	}

	for _, z := range s.Zones {
		zv := ZoneView{
			ID:           z.ID,
			Name:         z.Name,
			Type:         z.Type,
			FaceDown:     z.FaceDown,
			AcceptsDrops: z.AcceptsDrops,
			AcceptRule:   z.AcceptRule,
			Cards:        make([]*cards.Card, len(z.Cards)),
		}
		for i, c := range z.Cards {
			if c.FaceUp {
				zv.Cards[i] = c.Clone()
				continue
			}
			zv.Cards[i] = &cards.Card{ID: ZoneRef(z.ID, i)}
		}
		v.Zones = append(v.Zones, zv)
	}

	if la := s.LastAction; la != nil {
		cp := *la
		cp.Cards = append([]string(nil), la.Cards...)
		if cp.Action == ActionPeek && cp.PlayerID != viewerID {
			cp.Cards = nil
		}
		v.LastAction = &cp
	}
	if s.LastDrawn != nil && (s.LastDrawnBy == viewerID || !e.rules.Setup.KeepsDrawnCard()) {
		v.LastDrawn = s.LastDrawn.Clone()
	}
	return v
}

// Player returns the seat view with the given id, or nil.
func (v *View) Player(id string) *PlayerView {
	for i := range v.Players {
		if v.Players[i].ID == id {
			return &v.Players[i]
		}
	}
	return nil
}

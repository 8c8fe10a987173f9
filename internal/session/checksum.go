package session

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
)

// ChecksumVersion identifies the layout of the deterministic representation.
const ChecksumVersion = 1

// Checksum is a SHA-256 digest of a game state that ignores timestamps and
// map iteration order. Two engines that applied the same actions to the same
// seeded deck produce the same hash.
type Checksum struct {
	Hash    string
	Version int
}

// ComputeChecksum hashes the deterministic representation of state.
func ComputeChecksum(state *engine.GameState) (*Checksum, error) {
	if state == nil {
		return nil, fmt.Errorf("checksum of nil state")
	}
	hash := sha256.New()
	if _, err := hash.Write([]byte(deterministicRepresentation(state))); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &Checksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: ChecksumVersion,
	}, nil
}

// VerifyChecksum reports whether state still hashes to expected.
func VerifyChecksum(state *engine.GameState, expected *Checksum) (bool, error) {
	computed, err := ComputeChecksum(state)
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return expected != nil && computed.Hash == expected.Hash, nil
}

func deterministicRepresentation(s *engine.GameState) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s|%s|%d|%d|%d|%d|%s|%d|%d|%d\n",
		s.ID,
		s.Status,
		s.Phase,
		s.PhaseIndex,
		s.CurrentPlayer,
		s.Turn,
		s.Round,
		s.Winner,
		s.Pot,
		s.CurrentBet,
		s.EmergencyCards,
	)

	// Seat order matters for rotation, so players are listed in seat order
	// and then again sorted by id with their details.
	order := make([]string, len(s.Players))
	for i, p := range s.Players {
		order[i] = p.ID
	}
	buf.WriteString("PLAYER_ORDER:" + strings.Join(order, ",") + "\n")

	players := append([]*engine.Player(nil), s.Players...)
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	for _, p := range players {
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%s|%d|%t|%t|%t|%t|%t|%d|%d|%d\n",
			p.ID,
			p.Name,
			p.Kind,
			p.Score,
			p.IsActive,
			p.Eliminated,
			p.Folded,
			p.Stood,
			p.Busted,
			p.CardsPlayed,
			p.Chips,
			p.Bet,
		)
		buf.WriteString("  HAND:" + cardList(p.Hand) + "\n")
	}

	if s.Deck != nil {
		buf.WriteString("DECK:" + cardList(s.Deck.Cards()) + "\n")
	}
	buf.WriteString("DISCARD:" + cardList(s.Discard) + "\n")
	buf.WriteString("COMMUNITY:" + cardList(s.Community) + "\n")

	zones := append([]*engine.Zone(nil), s.Zones...)
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	for _, z := range zones {
		fmt.Fprintf(&buf, "ZONE:%s|%s|%t|%s\n", z.ID, z.Type, z.FaceDown, cardList(z.Cards))
	}

	flags := make([]string, 0, len(s.Flags))
	for name, on := range s.Flags {
		if on {
			flags = append(flags, name)
		}
	}
	sort.Strings(flags)
	buf.WriteString("FLAGS:" + strings.Join(flags, ",") + "\n")

	return buf.String()
}

// cardList keeps pile order; face state is part of the record.
func cardList(in []*cards.Card) string {
	parts := make([]string, len(in))
	for i, c := range in {
		face := "d"
		if c.FaceUp {
			face = "u"
		}
		parts[i] = c.ID + "/" + face
	}
	return strings.Join(parts, ",")
}

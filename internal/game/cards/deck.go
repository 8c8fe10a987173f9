package cards

import (
	crypto_rand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// reducedDecks maps supported short deck sizes to the lowest rank they keep.
var reducedDecks = map[int]Rank{
	36: RankSix,
	32: RankSeven,
	24: RankNine,
	20: RankTen,
}

// Deck is an ordered pile of cards; index 0 is the top.
type Deck struct {
	cards   []*Card
	randGen *rand.Rand
}

func newSeed() rand.Source {
	var b [8]byte
	if _, err := crypto_rand.Read(b[:]); err != nil {
		panic("cannot seed math/rand package with cryptographically secure random number generator")
	}
	return rand.NewSource(int64(binary.LittleEndian.Uint64(b[:])))
}

// NewDeck builds an unshuffled 52-card deck, plus two jokers when requested.
// A nil source seeds the generator from crypto/rand.
func NewDeck(includeJokers bool, source rand.Source) *Deck {
	size := 52
	if includeJokers {
		size = 54
	}
	return NewDeckOfSize(size, source)
}

// NewDeckOfSize builds an unshuffled deck of the given size. 52 and 54 are the
// standard deck without and with jokers; 36, 32, 24 and 20 keep the highest ranks
// (ace counts high for trimming). Any other size yields a standard 52-card deck.
func NewDeckOfSize(size int, source rand.Source) *Deck {
	if source == nil {
		source = newSeed()
	}
	deck := &Deck{randGen: rand.New(source)}

	lowest, reduced := reducedDecks[size]
	for _, suit := range Suits {
		for _, rank := range Ranks {
			if reduced && rank != RankAce && rank.Value() < lowest.Value() {
				continue
			}
			deck.cards = append(deck.cards, NewCard(suit, rank))
		}
	}
	if size == 54 {
		for i := 1; i <= 2; i++ {
			joker := NewCard(SuitJoker, RankJoker)
			joker.ID = fmt.Sprintf("JOKER-%d", i)
			deck.cards = append(deck.cards, joker)
		}
	}
	return deck
}

// NewDeckFromCards wraps an existing ordered card list.
func NewDeckFromCards(cards []*Card, source rand.Source) *Deck {
	if source == nil {
		source = newSeed()
	}
	return &Deck{cards: cards, randGen: rand.New(source)}
}

// Merge concatenates several decks into one. Every card identity receives a
// "-d<n>" suffix naming its source deck so ids stay unique across copies.
func Merge(source rand.Source, decks ...*Deck) *Deck {
	merged := NewDeckFromCards(nil, source)
	for i, d := range decks {
		for _, c := range d.cards {
			c.ID = fmt.Sprintf("%s-d%d", c.ID, i+1)
			merged.cards = append(merged.cards, c)
		}
		d.cards = nil
	}
	return merged
}

// Shuffle performs an in-place Fisher–Yates shuffle.
func (d *Deck) Shuffle() *Deck {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.randGen.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	return d
}

// Deal removes up to n cards from the top. Fewer cards are returned when the
// deck runs short; callers must handle the shortage.
func (d *Deck) Deal(n int) []*Card {
	if n <= 0 {
		return nil
	}
	if n > len(d.cards) {
		n = len(d.cards)
	}
	dealt := make([]*Card, n)
	copy(dealt, d.cards[:n])
	d.cards = d.cards[n:]
	return dealt
}

// DealOne removes the top card, or returns nil when the deck is empty.
func (d *Deck) DealOne() *Card {
	if len(d.cards) == 0 {
		return nil
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c
}

// DealHand deals perPlayer cards to each of playerCount hands, one card per
// player per pass. Hands may come back short if the deck runs out.
func (d *Deck) DealHand(playerCount, perPlayer int) [][]*Card {
	hands := make([][]*Card, playerCount)
	for round := 0; round < perPlayer; round++ {
		for p := 0; p < playerCount; p++ {
			c := d.DealOne()
			if c == nil {
				return hands
			}
			hands[p] = append(hands[p], c)
		}
	}
	return hands
}

// DealAllEvenly deals round-robin until the deck is exhausted.
func (d *Deck) DealAllEvenly(playerCount int) [][]*Card {
	hands := make([][]*Card, playerCount)
	if playerCount <= 0 {
		return hands
	}
	for p := 0; len(d.cards) > 0; p = (p + 1) % playerCount {
		hands[p] = append(hands[p], d.DealOne())
	}
	return hands
}

// Peek returns up to n cards from the top without removing them.
func (d *Deck) Peek(n int) []*Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	if n <= 0 {
		return nil
	}
	out := make([]*Card, n)
	copy(out, d.cards[:n])
	return out
}

// AddToBottom places cards under the current pile.
func (d *Deck) AddToBottom(cards ...*Card) {
	d.cards = append(d.cards, cards...)
}

// AddToTop places cards on top of the pile, preserving their order.
func (d *Deck) AddToTop(cards ...*Card) {
	d.cards = append(append([]*Card{}, cards...), d.cards...)
}

// Remove takes a specific card out of the deck by id.
func (d *Deck) Remove(cardID string) (*Card, bool) {
	for i, c := range d.cards {
		if c.ID == cardID {
			d.cards = append(d.cards[:i], d.cards[i+1:]...)
			return c, true
		}
	}
	return nil, false
}

// Len returns the number of cards remaining.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Empty reports whether the deck has no cards.
func (d *Deck) Empty() bool {
	return len(d.cards) == 0
}

// Cards returns the live card slice (top first). Callers must not retain it
// across mutations.
func (d *Deck) Cards() []*Card {
	return d.cards
}

// Clone deep-copies the deck for snapshots. The copy shares the generator.
func (d *Deck) Clone() *Deck {
	cp := &Deck{randGen: d.randGen, cards: make([]*Card, len(d.cards))}
	for i, c := range d.cards {
		cp.cards[i] = c.Clone()
	}
	return cp
}

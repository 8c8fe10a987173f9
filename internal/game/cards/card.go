package cards

import (
	"fmt"
	"strings"
)

// Suit identifies one of the four French suits, or the joker pseudo-suit.
type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitSpades   Suit = "spades"
	SuitJoker    Suit = "joker"
)

// Suits lists the four standard suits in deck-building order.
var Suits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

// IsRed reports whether the suit is hearts or diamonds.
func (s Suit) IsRed() bool {
	return s == SuitHearts || s == SuitDiamonds
}

// IsBlack reports whether the suit is clubs or spades.
func (s Suit) IsBlack() bool {
	return s == SuitClubs || s == SuitSpades
}

// Rank is the printed rank of a card: A, 2-10, J, Q, K (or JOKER).
type Rank string

const (
	RankAce   Rank = "A"
	RankTwo   Rank = "2"
	RankThree Rank = "3"
	RankFour  Rank = "4"
	RankFive  Rank = "5"
	RankSix   Rank = "6"
	RankSeven Rank = "7"
	RankEight Rank = "8"
	RankNine  Rank = "9"
	RankTen   Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
	RankJoker Rank = "JOKER"
)

// Ranks lists the thirteen standard ranks from ace to king.
var Ranks = []Rank{
	RankAce, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven,
	RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing,
}

var rankValues = map[Rank]int{
	RankAce: 1, RankTwo: 2, RankThree: 3, RankFour: 4, RankFive: 5,
	RankSix: 6, RankSeven: 7, RankEight: 8, RankNine: 9, RankTen: 10,
	RankJack: 11, RankQueen: 12, RankKing: 13, RankJoker: 0,
}

// Value returns the ordinal value of the rank (ace low, king 13, joker 0).
func (r Rank) Value() int {
	return rankValues[r]
}

var rankAliases = map[string]Rank{
	"a": RankAce, "ace": RankAce, "aces": RankAce, "1": RankAce, "one": RankAce,
	"2": RankTwo, "two": RankTwo, "twos": RankTwo, "deuce": RankTwo,
	"3": RankThree, "three": RankThree, "threes": RankThree,
	"4": RankFour, "four": RankFour, "fours": RankFour,
	"5": RankFive, "five": RankFive, "fives": RankFive,
	"6": RankSix, "six": RankSix, "sixes": RankSix,
	"7": RankSeven, "seven": RankSeven, "sevens": RankSeven,
	"8": RankEight, "eight": RankEight, "eights": RankEight,
	"9": RankNine, "nine": RankNine, "nines": RankNine,
	"10": RankTen, "ten": RankTen, "tens": RankTen,
	"j": RankJack, "jack": RankJack, "jacks": RankJack,
	"q": RankQueen, "queen": RankQueen, "queens": RankQueen,
	"k": RankKing, "king": RankKing, "kings": RankKing,
	"joker": RankJoker, "jokers": RankJoker,
}

// ParseRank resolves a rank from its symbol or English name ("Q", "queen", "queens").
func ParseRank(s string) (Rank, bool) {
	r, ok := rankAliases[strings.ToLower(strings.TrimSpace(s))]
	return r, ok
}

var suitAliases = map[string]Suit{
	"h": SuitHearts, "heart": SuitHearts, "hearts": SuitHearts, "♥": SuitHearts,
	"d": SuitDiamonds, "diamond": SuitDiamonds, "diamonds": SuitDiamonds, "♦": SuitDiamonds,
	"c": SuitClubs, "club": SuitClubs, "clubs": SuitClubs, "♣": SuitClubs,
	"s": SuitSpades, "spade": SuitSpades, "spades": SuitSpades, "♠": SuitSpades,
	"joker": SuitJoker,
}

// ParseSuit resolves a suit from its name, initial or symbol.
func ParseSuit(s string) (Suit, bool) {
	suit, ok := suitAliases[strings.ToLower(strings.TrimSpace(s))]
	return suit, ok
}

// Card is a single playing card. Identity (ID, Suit, Rank) never changes once
// built; FaceUp and Selected are presentation state owned by whichever container
// currently holds the card.
type Card struct {
	ID       string `json:"id"`
	Suit     Suit   `json:"suit"`
	Rank     Rank   `json:"rank"`
	Value    int    `json:"value"`
	FaceUp   bool   `json:"faceUp"`
	Selected bool   `json:"selected"`
}

// NewCard builds a face-down card with the default ordinal value.
func NewCard(suit Suit, rank Rank) *Card {
	return &Card{
		ID:    CardID(rank, suit),
		Suit:  suit,
		Rank:  rank,
		Value: rank.Value(),
	}
}

// CardID returns the canonical identity used for a card, e.g. "Q-hearts".
func CardID(rank Rank, suit Suit) string {
	return fmt.Sprintf("%s-%s", rank, suit)
}

// Clone returns a copy of the card. Used only for snapshots, never to move cards.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// IsRed reports whether the card belongs to a red suit.
func (c *Card) IsRed() bool {
	return c.Suit.IsRed()
}

// String renders the card as "Q of hearts".
func (c *Card) String() string {
	if c.Rank == RankJoker {
		return "joker"
	}
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

// Matches reports whether the card satisfies a loose textual pattern. Accepted
// forms are a card ID ("Q-hearts"), "<rank> of <suit>", a bare rank ("Q", "queen")
// or a bare suit ("hearts"). Deck suffixes on the card ID are ignored.
func (c *Card) Matches(pattern string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return false
	}
	if strings.EqualFold(c.ID, p) || strings.HasPrefix(strings.ToLower(c.ID), p+"-d") {
		return true
	}

	var rankPart, suitPart string
	switch {
	case strings.Contains(p, " of "):
		parts := strings.SplitN(p, " of ", 2)
		rankPart, suitPart = parts[0], parts[1]
	case strings.Contains(p, "-"):
		parts := strings.SplitN(p, "-", 2)
		rankPart, suitPart = parts[0], parts[1]
	default:
		if r, ok := ParseRank(p); ok {
			return c.Rank == r
		}
		if s, ok := ParseSuit(p); ok {
			return c.Suit == s
		}
		return false
	}

	r, okRank := ParseRank(rankPart)
	s, okSuit := ParseSuit(suitPart)
	return okRank && okSuit && c.Rank == r && c.Suit == s
}

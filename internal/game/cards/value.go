package cards

import (
	"fmt"
	"sort"

	"github.com/paulhankin/poker"
)

// Scoring scheme names accepted by HandValue.
const (
	ScoringSum        = "sum"
	ScoringBlackjack  = "blackjack"
	ScoringPoker      = "poker"
	ScoringPokerExact = "poker_exact"
)

// Simplified poker categories, weakest first.
const (
	HighCard = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var categoryNames = []string{
	"high card", "one pair", "two pair", "three of a kind", "straight",
	"flush", "full house", "four of a kind", "straight flush", "royal flush",
}

// CategoryName returns the English name of a simplified poker category.
func CategoryName(category int) string {
	if category < 0 || category >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[category]
}

// HandValue scores a hand under the named scheme. Unknown schemes fall back to sum.
func HandValue(hand []*Card, scheme string) int {
	switch scheme {
	case ScoringBlackjack:
		return BlackjackValue(hand)
	case ScoringPoker:
		return PokerCategory(hand)
	case ScoringPokerExact:
		if score, err := ExactPokerScore(hand); err == nil {
			return score
		}
		return PokerCategory(hand)
	default:
		return SumValue(hand)
	}
}

// SumValue adds the Value field of every card.
func SumValue(hand []*Card) int {
	total := 0
	for _, c := range hand {
		total += c.Value
	}
	return total
}

// BlackjackValue counts faces as 10 and aces as 11, demoting aces to 1 while the
// total is over 21.
func BlackjackValue(hand []*Card) int {
	total, aces := 0, 0
	for _, c := range hand {
		switch c.Rank {
		case RankAce:
			aces++
			total += 11
		case RankJack, RankQueen, RankKing:
			total += 10
		case RankJoker:
		default:
			total += c.Rank.Value()
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// PokerCategory ranks a hand by flush, straight and rank-group heuristics. Hands
// shorter than five cards can only score groups.
func PokerCategory(hand []*Card) int {
	counts := make(map[int]int)
	suits := make(map[Suit]int)
	var values []int
	for _, c := range hand {
		if c.Rank == RankJoker {
			continue
		}
		v := c.Rank.Value()
		if c.Rank == RankAce {
			v = 14
		}
		if counts[v] == 0 {
			values = append(values, v)
		}
		counts[v]++
		suits[c.Suit]++
	}

	flush := false
	for _, n := range suits {
		if n >= 5 {
			flush = true
		}
	}
	straight, high := hasStraight(values)

	groups := make([]int, 0, len(counts))
	for _, n := range counts {
		groups = append(groups, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(groups)))

	switch {
	case straight && flush && high == 14:
		return RoyalFlush
	case straight && flush:
		return StraightFlush
	case len(groups) > 0 && groups[0] >= 4:
		return FourOfAKind
	case len(groups) > 1 && groups[0] == 3 && groups[1] >= 2:
		return FullHouse
	case flush:
		return Flush
	case straight:
		return Straight
	case len(groups) > 0 && groups[0] == 3:
		return ThreeOfAKind
	case len(groups) > 1 && groups[0] == 2 && groups[1] == 2:
		return TwoPair
	case len(groups) > 0 && groups[0] == 2:
		return OnePair
	}
	return HighCard
}

// hasStraight looks for five consecutive values, with the ace also counting low.
func hasStraight(values []int) (bool, int) {
	present := make(map[int]bool, len(values)+1)
	for _, v := range values {
		present[v] = true
		if v == 14 {
			present[1] = true
		}
	}
	for top := 14; top >= 5; top-- {
		run := true
		for v := top; v > top-5; v-- {
			if !present[v] {
				run = false
				break
			}
		}
		if run {
			return true, top
		}
	}
	return false, 0
}

var pokerSuits = map[Suit]poker.Suit{
	SuitClubs:    poker.Club,
	SuitDiamonds: poker.Diamond,
	SuitHearts:   poker.Heart,
	SuitSpades:   poker.Spade,
}

// toPokerCard converts a card to the evaluator's representation (ace = 1).
func toPokerCard(c *Card) (poker.Card, error) {
	suit, ok := pokerSuits[c.Suit]
	if !ok {
		return 0, fmt.Errorf("card %s has no poker suit", c.ID)
	}
	card, err := poker.MakeCard(suit, poker.Rank(c.Rank.Value()))
	if err != nil {
		return 0, fmt.Errorf("convert %s: %w", c.ID, err)
	}
	return card, nil
}

func toPokerHand(hand []*Card) (*[7]poker.Card, error) {
	if len(hand) != 7 {
		return nil, fmt.Errorf("exact poker scoring needs 7 cards, got %d", len(hand))
	}
	var out [7]poker.Card
	for i, c := range hand {
		pc, err := toPokerCard(c)
		if err != nil {
			return nil, err
		}
		out[i] = pc
	}
	return &out, nil
}

// ExactPokerScore evaluates the best five of exactly seven cards. Higher scores
// beat lower ones.
func ExactPokerScore(hand []*Card) (int, error) {
	cards, err := toPokerHand(hand)
	if err != nil {
		return 0, err
	}
	return int(poker.Eval7(cards)), nil
}

// DescribePokerHand names the best five-card hand within seven cards.
func DescribePokerHand(hand []*Card) (string, error) {
	cards, err := toPokerHand(hand)
	if err != nil {
		return "", err
	}
	return poker.Describe(cards[:])
}

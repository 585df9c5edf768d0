package strategy

import (
	"slices"

	"github.com/lox/balatrobot/internal/deck"
)

// Category is a scored hand type. Values are ordered by precedence: when a
// hand satisfies several conditions the highest category wins.
type Category int

const (
	Invalid    Category = iota // not exactly five cards
	Incomplete                 // fewer than five populated hand slots
	HighCard
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	FiveOfAKind
	FlushHouse
	FlushFive
)

var categoryNames = [...]string{
	Invalid:       "Invalid",
	Incomplete:    "Incomplete",
	HighCard:      "High Card",
	Pair:          "Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
	FiveOfAKind:   "Five of a Kind",
	FlushHouse:    "Flush House",
	FlushFive:     "Flush Five",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Scorable reports whether the category is a real hand rather than a sentinel
func (c Category) Scorable() bool {
	return c >= HighCard && c <= FlushFive
}

// base chips and mult per category
var baseScores = map[Category]struct{ chips, mult int }{
	FlushFive:     {160, 16},
	FlushHouse:    {140, 14},
	FiveOfAKind:   {120, 12},
	StraightFlush: {100, 8},
	FourOfAKind:   {60, 7},
	FullHouse:     {40, 4},
	Flush:         {35, 4},
	Straight:      {30, 4},
	ThreeOfAKind:  {30, 3},
	TwoPair:       {20, 2},
	Pair:          {10, 2},
	HighCard:      {5, 1},
}

// Evaluation is the detailed result of scoring five cards
type Evaluation struct {
	Category Category
	Chips    int // base chips plus the chip value of the scoring cards
	Mult     int
	Score    int
	Scoring  []int // positions of the scoring cards in the input
}

// EvaluateHand scores exactly five cards. Any other count yields (0, Invalid).
func EvaluateHand(cards []deck.Card) (int, Category) {
	ev := Evaluate(cards)
	return ev.Score, ev.Category
}

// Evaluate scores exactly five cards and reports which of them scored
func Evaluate(cards []deck.Card) Evaluation {
	if len(cards) != 5 {
		return Evaluation{Category: Invalid}
	}

	flush := true
	for _, c := range cards[1:] {
		if c.Suit != cards[0].Suit {
			flush = false
			break
		}
	}

	ordinals := make([]int, len(cards))
	for i, c := range cards {
		ordinals[i] = c.Rank.Ordinal()
	}
	slices.Sort(ordinals)
	straight := isStraight(ordinals)

	groups := groupRanks(cards)
	primary := len(groups[0])
	secondary := 0
	if len(groups) > 1 {
		secondary = len(groups[1])
	}

	all := []int{0, 1, 2, 3, 4}
	var category Category
	var scoring []int

	switch {
	case flush && primary == 5:
		category, scoring = FlushFive, all
	case flush && primary == 3 && secondary == 2:
		category, scoring = FlushHouse, all
	case primary == 5:
		category, scoring = FiveOfAKind, all
	case straight && flush:
		category, scoring = StraightFlush, all
	case primary == 4:
		category, scoring = FourOfAKind, groups[0]
	case primary == 3 && secondary == 2:
		category, scoring = FullHouse, all
	case flush:
		category, scoring = Flush, all
	case straight:
		category, scoring = Straight, all
	case primary == 3:
		category, scoring = ThreeOfAKind, groups[0]
	case primary == 2 && secondary == 2:
		category, scoring = TwoPair, append(slices.Clone(groups[0]), groups[1]...)
	case primary == 2:
		category, scoring = Pair, groups[0]
	default:
		category, scoring = HighCard, []int{highestCard(cards)}
	}

	base := baseScores[category]
	chips := base.chips
	for _, i := range scoring {
		chips += cards[i].ChipValue()
	}

	return Evaluation{
		Category: category,
		Chips:    chips,
		Mult:     base.mult,
		Score:    chips * base.mult,
		Scoring:  slices.Clone(scoring),
	}
}

// isStraight expects sorted rank ordinals. A-2-3-4-5 counts as a straight.
func isStraight(ordinals []int) bool {
	if slices.Equal(ordinals, []int{0, 1, 2, 3, deck.Ace.Ordinal()}) {
		return true
	}
	for i := 1; i < len(ordinals); i++ {
		if ordinals[i] != ordinals[i-1]+1 {
			return false
		}
	}
	return true
}

// groupRanks returns card positions grouped by rank, largest group first.
// Groups of equal size keep the order in which their rank first appears.
func groupRanks(cards []deck.Card) [][]int {
	var groups [][]int
	index := make(map[deck.Rank]int, len(cards))
	for i, c := range cards {
		g, ok := index[c.Rank]
		if !ok {
			g = len(groups)
			index[c.Rank] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	slices.SortStableFunc(groups, func(a, b []int) int {
		return len(b) - len(a)
	})
	return groups
}

func highestCard(cards []deck.Card) int {
	best := 0
	for i, c := range cards[1:] {
		if c.Rank > cards[best].Rank {
			best = i + 1
		}
	}
	return best
}

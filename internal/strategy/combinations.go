package strategy

import (
	"cmp"
	"slices"

	"github.com/lox/balatrobot/internal/deck"
)

// HandSize is the number of cards scored together
const HandSize = 5

// Combination is one 5-card subset of a hand together with its score
type Combination struct {
	Score    int
	Indices  [HandSize]int
	Category Category
}

// Cards returns the cards of the combination from hand
func (c Combination) Cards(hand []*deck.Card) []deck.Card {
	cards := make([]deck.Card, 0, HandSize)
	for _, i := range c.Indices {
		if i < len(hand) && hand[i] != nil {
			cards = append(cards, *hand[i])
		}
	}
	return cards
}

// Slots adapts a list of cards to hand slots where every slot is populated
func Slots(cards []deck.Card) []*deck.Card {
	slots := make([]*deck.Card, len(cards))
	for i := range cards {
		slots[i] = &cards[i]
	}
	return slots
}

// RankAllCombinations scores every 5-card subset of the hand and returns them
// best first. Subsets containing an empty slot are skipped. Ties keep the
// lexicographic order of their index tuples. Hands with fewer than five
// slots return nil.
func RankAllCombinations(hand []*deck.Card) []Combination {
	n := len(hand)
	if n < HandSize {
		return nil
	}

	combos := make([]Combination, 0, binomial(n, HandSize))
	cards := make([]deck.Card, HandSize)

	forEachSubset(n, func(idx [HandSize]int) {
		for i, pos := range idx {
			if hand[pos] == nil {
				return
			}
			cards[i] = *hand[pos]
		}
		score, category := EvaluateHand(cards)
		combos = append(combos, Combination{Score: score, Indices: idx, Category: category})
	})

	slices.SortStableFunc(combos, func(a, b Combination) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return combos
}

// BestCombination returns the highest scoring combination. It reports false,
// with the Incomplete category, when fewer than five slots are populated.
func BestCombination(hand []*deck.Card) (Combination, bool) {
	combos := RankAllCombinations(hand)
	if len(combos) == 0 {
		return Combination{Category: Incomplete}, false
	}
	return combos[0], true
}

// forEachSubset calls fn with every 5-element subset of 0..n-1 in
// lexicographic order
func forEachSubset(n int, fn func([HandSize]int)) {
	var idx [HandSize]int
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)

		i := HandSize - 1
		for i >= 0 && idx[i] == n-HandSize+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < HandSize; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	result := 1
	for i := 1; i <= k; i++ {
		result = result * (n - k + i) / i
	}
	return result
}

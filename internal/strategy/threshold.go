package strategy

import (
	"cmp"
	"slices"

	"github.com/lox/balatrobot/internal/deck"
)

// DefaultThreshold discards Two through Nine and keeps Ten and above
var DefaultThreshold = deck.Ten.Ordinal()

// ThresholdDiscard selects every card whose rank ordinal is below threshold,
// lowest ranks first when more than MaxDiscard qualify.
func ThresholdDiscard(hand []*deck.Card, threshold int) []int {
	var discard []int
	for i, card := range hand {
		if card != nil && card.Rank.Ordinal() < threshold {
			discard = append(discard, i)
		}
	}
	if len(discard) <= MaxDiscard {
		return discard
	}

	slices.SortStableFunc(discard, func(a, b int) int {
		return cmp.Compare(hand[a].Rank, hand[b].Rank)
	})
	return discard[:MaxDiscard]
}

// Threshold throws away low cards while discards remain, then plays the best
// combination
type Threshold struct {
	Rank int
}

func (Threshold) Name() string { return "threshold" }

func (t Threshold) Plan(st State) Plan {
	best, ok := BestCombination(st.Hand)
	if !ok {
		return Plan{Action: NotEnoughCards, Best: best, Reason: "fewer than five cards in hand"}
	}

	if st.DiscardsLeft > 0 && st.Score < st.BlindTarget {
		if discard := ThresholdDiscard(st.Hand, t.Rank); len(discard) > 0 {
			return Plan{Action: Discard, Indices: discard, Best: best, Reason: "discarding cards below threshold"}
		}
	}
	return Plan{Action: PlayNow, Indices: best.Indices[:], Best: best, Reason: "no low cards to discard"}
}

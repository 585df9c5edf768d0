package strategy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lox/balatrobot/internal/deck"
)

// MaxDiscard is the most cards a single discard may select
const MaxDiscard = 5

// keepWeight is the accumulated importance a card needs to be kept when the
// top combinations disagree on category
const keepWeight = 1.5

// Action is what a plan asks the caller to do
type Action int

const (
	PlayNow Action = iota
	Discard
	NotEnoughCards
)

func (a Action) String() string {
	switch a {
	case PlayNow:
		return "play"
	case Discard:
		return "discard"
	case NotEnoughCards:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Plan is the outcome of a decision. For PlayNow, Indices is the combination
// to play; for Discard it is the cards to throw away.
type Plan struct {
	Action  Action
	Indices []int
	Best    Combination
	Target  float64 // score needed per remaining hand
	Reason  string
}

// Actionable reports whether the plan can be sent to the engine
func (p Plan) Actionable() bool {
	return p.Action != NotEnoughCards && len(p.Indices) > 0
}

// State is the slice of a Play screen a planner needs
type State struct {
	Hand         []*deck.Card
	Score        float64
	BlindTarget  float64
	HandsLeft    int
	DiscardsLeft int
}

// Planner decides whether to play or discard
type Planner interface {
	Name() string
	Plan(st State) Plan
}

// NewPlanner looks up a planner by name
func NewPlanner(name string, threshold int) (Planner, error) {
	switch strings.ToLower(name) {
	case "", "smart":
		return Smart{}, nil
	case "threshold":
		return Threshold{Rank: threshold}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want smart or threshold)", name)
	}
}

// Smart plans discards from the agreement between the top ranked combinations
type Smart struct{}

func (Smart) Name() string { return "smart" }

func (Smart) Plan(st State) Plan {
	return PlanDiscard(st.Hand, st.Score, st.BlindTarget, st.HandsLeft)
}

// PlanDiscard decides between playing the best combination now and
// discarding toward a stronger one. The score still needed is spread evenly
// over the remaining hands; if the best combination already meets that
// share the plan is to play.
func PlanDiscard(hand []*deck.Card, currentScore, blindTarget float64, handsLeft int) Plan {
	needed := blindTarget - currentScore
	target := needed
	if handsLeft > 0 {
		target = needed / float64(handsLeft)
	}

	combos := RankAllCombinations(hand)
	if len(combos) == 0 {
		return Plan{
			Action: NotEnoughCards,
			Best:   Combination{Category: Incomplete},
			Target: target,
			Reason: "fewer than five cards in hand",
		}
	}
	best := combos[0]

	playNow := func(reason string) Plan {
		return Plan{Action: PlayNow, Indices: best.Indices[:], Best: best, Target: target, Reason: reason}
	}

	if target <= 0 {
		return playNow("blind target already reached")
	}
	if float64(best.Score) >= target {
		return playNow("best combination meets the target")
	}

	top := combos[:min(3, len(combos))]
	keep, reason := keepSet(top)

	var discard []int
	for i, card := range hand {
		if card != nil && !keep[i] {
			discard = append(discard, i)
		}
	}
	if len(discard) == 0 {
		return playNow("every card is worth keeping")
	}
	if len(discard) > MaxDiscard {
		discard = discard[:MaxDiscard]
	}

	return Plan{Action: Discard, Indices: discard, Best: best, Target: target, Reason: reason}
}

// keepSet picks the hand positions worth holding on to
func keepSet(top []Combination) (map[int]bool, string) {
	best := top[0]
	keep := make(map[int]bool, HandSize)

	sameCategory := true
	for _, c := range top[1:] {
		if c.Category != best.Category {
			sameCategory = false
			break
		}
	}

	if sameCategory {
		for _, i := range best.Indices {
			shared := true
			for _, c := range top[1:] {
				if !slices.Contains(c.Indices[:], i) {
					shared = false
					break
				}
			}
			if shared {
				keep[i] = true
			}
		}
		if len(keep) > 0 {
			return keep, "keeping cards shared by the top " + best.Category.String() + " combinations"
		}
		return indexSet(best), "no shared cards, keeping the best combination"
	}

	weights := make(map[int]float64)
	for _, c := range top {
		w := 1.0
		if best.Score > 0 {
			w = float64(c.Score) / float64(best.Score)
		}
		for _, i := range c.Indices {
			weights[i] += w
		}
	}
	for i, w := range weights {
		if w >= keepWeight {
			keep[i] = true
		}
	}
	if len(keep) < 3 {
		return indexSet(best), "few important cards, keeping the best combination"
	}
	return keep, "keeping cards weighted across mixed top combinations"
}

func indexSet(c Combination) map[int]bool {
	set := make(map[int]bool, HandSize)
	for _, i := range c.Indices {
		set[i] = true
	}
	return set
}

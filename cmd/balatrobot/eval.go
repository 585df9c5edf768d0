package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lox/balatrobot/internal/deck"
	"github.com/lox/balatrobot/internal/randutil"
	"github.com/lox/balatrobot/internal/screen"
	"github.com/lox/balatrobot/internal/strategy"
)

// EvalCmd analyses a hand offline
type EvalCmd struct {
	Hand      string  `arg:"" optional:"" help:"Hand in compact form, e.g. '2s2h2d9cKsKh3d7s'"`
	Random    bool    `short:"r" help:"Deal a random eight-card hand instead"`
	Seed      *int64  `help:"Random seed for --random"`
	Target    float64 `short:"t" default:"300" help:"Score needed to beat the blind"`
	Score     float64 `help:"Score already made this round"`
	Hands     int     `default:"4" help:"Hands left"`
	Discards  int     `default:"3" help:"Discards left"`
	Strategy  string  `short:"s" default:"smart" help:"Discard strategy: smart or threshold"`
	Threshold int     `default:"8" help:"Lowest rank ordinal the threshold strategy keeps (2=0 ... A=12)"`
	Top       int     `short:"n" default:"10" help:"Number of combinations to list (0 lists all)"`
	NoColor   bool    `help:"Disable colored output"`
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	handStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	discardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	dimStyle = lipgloss.NewStyle().
			Faint(true)
)

// evalReport is everything the eval command prints
type evalReport struct {
	Hand   []deck.Card
	Combos []strategy.Combination
	Shown  int
	Plan   strategy.Plan
	State  strategy.State
}

func (c *EvalCmd) Run() error {
	if c.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	hand, err := c.hand()
	if err != nil {
		return err
	}

	planner, err := strategy.NewPlanner(c.Strategy, c.Threshold)
	if err != nil {
		return err
	}

	report := c.evaluate(hand, planner)
	return renderReport(os.Stdout, report)
}

// hand parses the hand argument or deals a random one
func (c *EvalCmd) hand() ([]deck.Card, error) {
	if c.Random {
		rng, _ := randutil.Seeded(c.Seed)
		d := deck.NewDeck(rng)
		d.Shuffle()
		return d.DealN(screen.MaxHandSize), nil
	}

	if strings.TrimSpace(c.Hand) == "" {
		return nil, fmt.Errorf("a hand or --random is required")
	}
	hand, err := deck.ParseCards(c.Hand)
	if err != nil {
		return nil, fmt.Errorf("parsing hand: %w", err)
	}
	if len(hand) == 0 || len(hand) > screen.MaxHandSize {
		return nil, fmt.Errorf("hand must have 1 to %d cards, got %d", screen.MaxHandSize, len(hand))
	}

	seen := make(map[deck.Card]bool)
	for _, card := range hand {
		if seen[card] {
			return nil, fmt.Errorf("duplicate card: %s", card)
		}
		seen[card] = true
	}
	return hand, nil
}

func (c *EvalCmd) evaluate(hand []deck.Card, planner strategy.Planner) evalReport {
	slots := strategy.Slots(hand)
	st := strategy.State{
		Hand:         slots,
		Score:        c.Score,
		BlindTarget:  c.Target,
		HandsLeft:    c.Hands,
		DiscardsLeft: c.Discards,
	}

	combos := strategy.RankAllCombinations(slots)
	shown := len(combos)
	if c.Top > 0 && c.Top < shown {
		shown = c.Top
	}

	return evalReport{
		Hand:   hand,
		Combos: combos,
		Shown:  shown,
		Plan:   planner.Plan(st),
		State:  st,
	}
}

func renderReport(out io.Writer, r evalReport) error {
	fmt.Fprintf(out, "%s\n", headerStyle.Render("hand"))
	fmt.Fprintf(out, "%s\n\n", handStyle.Render(formatCards(r.Hand)))

	if len(r.Combos) == 0 {
		fmt.Fprintf(out, "%s\n\n", dimStyle.Render("fewer than five cards, nothing to rank"))
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			headerStyle.Render("#"),
			headerStyle.Render("cards"),
			headerStyle.Render("category"),
			headerStyle.Render("score"))

		for i, combo := range r.Combos[:r.Shown] {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				i+1,
				handStyle.Render(formatCards(combo.Cards(r.State.Hand))),
				categoryStyle.Render(combo.Category.String()),
				scoreStyle.Render(fmt.Sprintf("%d", combo.Score)))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if hidden := len(r.Combos) - r.Shown; hidden > 0 {
			fmt.Fprintf(out, "%s\n", dimStyle.Render(fmt.Sprintf("... %d more", hidden)))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%s\n", headerStyle.Render("plan"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "target\t%.0f of %.0f over %d hands (%.1f per hand)\n",
		r.State.BlindTarget-r.State.Score, r.State.BlindTarget, r.State.HandsLeft, r.Plan.Target)
	fmt.Fprintf(w, "action\t%s\n", r.Plan.Action)

	cards := make([]deck.Card, 0, len(r.Plan.Indices))
	for _, i := range r.Plan.Indices {
		cards = append(cards, r.Hand[i])
	}
	style := scoreStyle
	if r.Plan.Action == strategy.Discard {
		style = discardStyle
	}
	fmt.Fprintf(w, "cards\t%s\n", style.Render(formatCards(cards)))
	fmt.Fprintf(w, "reason\t%s\n", r.Plan.Reason)
	return w.Flush()
}

func formatCards(cards []deck.Card) string {
	parts := make([]string, len(cards))
	for i, card := range cards {
		parts[i] = card.String()
	}
	return strings.Join(parts, " ")
}

// Package agent drives the game from whatever screen it is on: it starts runs,
// picks blinds, plays or discards each hand and walks through the shop until
// the engine disconnects.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/balatrobot/internal/protocol"
	"github.com/lox/balatrobot/internal/runid"
	"github.com/lox/balatrobot/internal/screen"
	"github.com/lox/balatrobot/internal/statistics"
	"github.com/lox/balatrobot/internal/strategy"
)

// ErrTooManyErrors ends a session once MaxErrors steps fail in a row
var ErrTooManyErrors = errors.New("too many consecutive errors")

// Delays are the pauses between actions. Zero or negative skips the pause.
type Delays struct {
	Loop     time.Duration // between screen polls
	Blind    time.Duration // before selecting a blind
	Retry    time.Duration // before retrying a failed blind selection
	Shop     time.Duration // before visiting the shop
	CashOut  time.Duration // before collecting a round payout
	GameOver time.Duration // before restarting a lost run
}

// DefaultDelays leave the game time to animate between actions
func DefaultDelays() Delays {
	return Delays{
		Loop:     100 * time.Millisecond,
		Blind:    500 * time.Millisecond,
		Retry:    time.Second,
		Shop:     time.Second,
		CashOut:  2 * time.Second,
		GameOver: time.Second,
	}
}

// Config controls a session. Zero fields take their defaults.
type Config struct {
	ID        int
	Run       screen.RunConfig
	Planner   strategy.Planner
	Shop      ShopPolicy
	Delays    Delays
	MaxErrors int // 0 is unlimited
	Clock     quartz.Clock
	Events    EventSink
	RunIDs    *runid.Generator // names each run in logs and events
}

// DefaultConfig plays Red deck, White stake with the smart planner
func DefaultConfig() Config {
	return Config{
		Run:     screen.DefaultRunConfig(),
		Planner: strategy.Smart{},
		Shop:    LeaveShop{},
		Delays:  DefaultDelays(),
	}
}

// Stats summarise a session
type Stats struct {
	Runs        int
	RoundsWon   int
	HandsPlayed int
	Discards    int
	GameOvers   int
	Errors      int
	Duration    time.Duration
}

// Session plays the game over one engine connection
type Session struct {
	conn    screen.Requester
	cfg     Config
	logger  *log.Logger
	clock   quartz.Clock
	events  EventSink
	stats   Stats
	started time.Time

	run     statistics.RunResult // current run, valid while inRun
	runID   string
	inRun   bool
	results statistics.Statistics
}

func NewSession(conn screen.Requester, logger *log.Logger, cfg Config) *Session {
	if cfg.Planner == nil {
		cfg.Planner = strategy.Smart{}
	}
	if cfg.Shop == nil {
		cfg.Shop = LeaveShop{}
	}
	if cfg.Run.Back == "" {
		cfg.Run.Back = screen.BackRed
	}
	if !cfg.Run.Stake.Valid() {
		cfg.Run.Stake = screen.StakeWhite
	}

	s := &Session{
		conn:   conn,
		cfg:    cfg,
		logger: logger.WithPrefix("agent").With("session", cfg.ID),
		clock:  cfg.Clock,
		events: cfg.Events,
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.events == nil {
		s.events = NopSink{}
	}
	if s.cfg.RunIDs == nil {
		s.cfg.RunIDs = runid.New(s.clock, nil)
	}
	return s
}

// Stats returns the counters so far
func (s *Session) Stats() Stats {
	return s.stats
}

// Results returns a copy of the per-run statistics. A run still in progress
// is only counted once the session ends.
func (s *Session) Results() statistics.Statistics {
	return s.results.Clone()
}

// endRun records the current run, if any
func (s *Session) endRun(finished bool) {
	if !s.inRun {
		return
	}
	s.run.Finished = finished
	s.results.Add(s.run)
	s.inRun = false
}

// Run polls the screen and acts on it until the engine disconnects, ctx is
// done or MaxErrors is hit. A disconnect is a normal end and returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.started = s.clock.Now()
	s.logger.Info("Session started", "strategy", s.cfg.Planner.Name(), "deck", s.cfg.Run.Back.Name(), "stake", s.cfg.Run.Stake)
	s.publish(EventSessionStart, map[string]any{
		"strategy": s.cfg.Planner.Name(),
		"deck":     s.cfg.Run.Back,
		"stake":    int(s.cfg.Run.Stake),
	})
	defer s.finish()

	consecutive := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.step(ctx)
		switch {
		case err == nil:
			consecutive = 0
		case errors.Is(err, protocol.ErrConnectionClosed):
			s.logger.Info("Engine disconnected")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			consecutive++
			s.stats.Errors++
			s.logger.Warn("Step failed", "error", err, "consecutive", consecutive)
			s.publish(EventError, map[string]any{"error": err.Error()})
			if s.cfg.MaxErrors > 0 && consecutive >= s.cfg.MaxErrors {
				return fmt.Errorf("%w (%d): %w", ErrTooManyErrors, consecutive, err)
			}
		}

		if err := s.wait(ctx, s.cfg.Delays.Loop); err != nil {
			return err
		}
	}
}

func (s *Session) finish() {
	s.endRun(false)
	s.stats.Duration = s.clock.Since(s.started)
	s.logger.Info("Session finished",
		"runs", s.stats.Runs,
		"rounds_won", s.stats.RoundsWon,
		"hands", s.stats.HandsPlayed,
		"discards", s.stats.Discards,
		"game_overs", s.stats.GameOvers,
		"errors", s.stats.Errors,
		"mean_rounds", s.results.Mean(),
		"best_rounds", s.results.MaxRounds,
		"duration", s.stats.Duration)
	s.publish(EventSessionEnd, map[string]any{
		"runs":        s.stats.Runs,
		"rounds_won":  s.stats.RoundsWon,
		"hands":       s.stats.HandsPlayed,
		"discards":    s.stats.Discards,
		"game_overs":  s.stats.GameOvers,
		"errors":      s.stats.Errors,
		"mean_rounds": s.results.Mean(),
		"best_rounds": s.results.MaxRounds,
		"duration_ms": s.stats.Duration.Milliseconds(),
	})
}

// step fetches the current screen and takes one action on it
func (s *Session) step(ctx context.Context) error {
	current, err := screen.Fetch(ctx, s.conn)
	if err != nil {
		return fmt.Errorf("fetch screen: %w", err)
	}
	s.logger.Debug("Screen", "kind", current.Kind())

	switch sc := current.(type) {
	case *screen.Menu:
		return s.newRun(ctx, sc.NewRun)
	case *screen.SelectBlind:
		return s.selectBlind(ctx, sc)
	case *screen.Play:
		return s.play(ctx, sc)
	case *screen.Shop:
		return s.shop(ctx, sc)
	case *screen.RoundOverview:
		return s.cashOut(ctx, sc)
	case *screen.GameOver:
		s.stats.GameOvers++
		rounds := s.run.Rounds
		s.endRun(true)
		s.logger.Info("Game over", "run_id", s.runID, "rounds", rounds, "rounds_won", s.stats.RoundsWon)
		s.publish(EventGameOver, map[string]any{"rounds": rounds})
		if err := s.wait(ctx, s.cfg.Delays.GameOver); err != nil {
			return err
		}
		return s.newRun(ctx, sc.NewRun)
	default:
		return fmt.Errorf("unhandled screen %s", current.Kind())
	}
}

func (s *Session) newRun(ctx context.Context, start func(context.Context, screen.RunConfig) (*screen.SelectBlind, error)) error {
	blinds, err := start(ctx, s.cfg.Run)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	s.endRun(false)
	s.run = statistics.RunResult{}
	s.runID = s.cfg.RunIDs.Next()
	s.inRun = true
	s.stats.Runs++
	s.logger.Info("Run started", "run", s.stats.Runs, "run_id", s.runID, "small", blinds.Small().Chips)
	s.publish(EventNewRun, map[string]any{
		"run":   s.stats.Runs,
		"deck":  s.cfg.Run.Back,
		"stake": int(s.cfg.Run.Stake),
		"seed":  s.cfg.Run.Seed,
	})
	return nil
}

func (s *Session) selectBlind(ctx context.Context, blinds *screen.SelectBlind) error {
	s.logger.Info("Blinds", "small", blinds.Small(), "big", blinds.Big(), "boss", blinds.Boss())

	if err := s.wait(ctx, s.cfg.Delays.Blind); err != nil {
		return err
	}

	play, err := blinds.Select(ctx)
	if err != nil {
		if errors.Is(err, protocol.ErrConnectionClosed) {
			return err
		}
		s.logger.Warn("Blind selection failed, retrying", "error", err)
		if err := s.wait(ctx, s.cfg.Delays.Retry); err != nil {
			return err
		}
		if play, err = blinds.Select(ctx); err != nil {
			return fmt.Errorf("select blind: %w", err)
		}
	}

	s.logger.Info("Blind selected", "blind", play.Blind(), "hands", play.Hands(), "discards", play.Discards())
	s.publish(EventBlindSelect, map[string]any{
		"blind":  play.Blind().Kind,
		"boss":   play.Blind().Boss,
		"target": play.BlindTarget(),
	})
	return nil
}

// decide plans the next move. Discarding is only considered while both
// hands and discards remain.
func (s *Session) decide(p *screen.Play) strategy.Plan {
	st := strategy.State{
		Hand:         p.Cards(),
		Score:        p.Score(),
		BlindTarget:  p.BlindTarget(),
		HandsLeft:    p.Hands(),
		DiscardsLeft: p.Discards(),
	}

	var plan strategy.Plan
	if st.DiscardsLeft > 0 && st.HandsLeft > 0 {
		plan = s.cfg.Planner.Plan(st)
	} else {
		best, ok := strategy.BestCombination(st.Hand)
		plan = strategy.Plan{Action: strategy.PlayNow, Indices: best.Indices[:], Best: best, Reason: "no discards left"}
		if !ok {
			plan = strategy.Plan{Action: strategy.NotEnoughCards, Best: best}
		}
	}

	if plan.Action == strategy.NotEnoughCards {
		// play whatever is left in hand
		var indices []int
		for i, card := range st.Hand {
			if card != nil && len(indices) < screen.MaxSelection {
				indices = append(indices, i)
			}
		}
		plan = strategy.Plan{Action: strategy.PlayNow, Indices: indices, Best: plan.Best, Reason: "fewer than five cards in hand"}
	}
	return plan
}

func (s *Session) play(ctx context.Context, p *screen.Play) error {
	plan := s.decide(p)
	if !plan.Actionable() {
		return fmt.Errorf("no cards to act on in hand of %d", len(p.Hand()))
	}

	s.logger.Info("Decision",
		"action", plan.Action,
		"cards", plan.Indices,
		"best", plan.Best.Category,
		"best_score", plan.Best.Score,
		"score", p.Score(),
		"target", p.BlindTarget(),
		"reason", plan.Reason)
	s.publish(EventDecision, map[string]any{
		"action":     plan.Action.String(),
		"indices":    plan.Indices,
		"best":       plan.Best.Category.String(),
		"best_score": plan.Best.Score,
		"reason":     plan.Reason,
	})

	if err := p.SelectOnly(ctx, plan.Indices); err != nil {
		return fmt.Errorf("select cards: %w", err)
	}

	if plan.Action == strategy.Discard {
		next, err := p.Discard(ctx)
		if err != nil {
			return fmt.Errorf("discard: %w", err)
		}
		s.stats.Discards++
		s.run.Discards++
		s.publish(EventDiscard, map[string]any{"count": len(plan.Indices), "result": next.Kind()})
		return nil
	}

	next, err := p.PlayHand(ctx)
	if err != nil {
		return fmt.Errorf("play hand: %w", err)
	}
	s.stats.HandsPlayed++
	s.run.Hands++
	s.publish(EventHandPlayed, map[string]any{
		"category": plan.Best.Category.String(),
		"expected": plan.Best.Score,
		"result":   next.Kind(),
	})

	if overview, ok := next.(*screen.RoundOverview); ok {
		return s.cashOut(ctx, overview)
	}
	return nil
}

func (s *Session) cashOut(ctx context.Context, overview *screen.RoundOverview) error {
	s.logger.Info("Round won", "earned", overview.TotalEarned(), "lines", len(overview.Earnings()))

	if err := s.wait(ctx, s.cfg.Delays.CashOut); err != nil {
		return err
	}
	if _, err := overview.CashOut(ctx); err != nil {
		return fmt.Errorf("cash out: %w", err)
	}
	s.stats.RoundsWon++
	s.run.Rounds++
	s.run.Earned += overview.TotalEarned()
	s.publish(EventCashOut, map[string]any{"earned": overview.TotalEarned(), "rounds_won": s.stats.RoundsWon})
	return nil
}

func (s *Session) shop(ctx context.Context, shop *screen.Shop) error {
	s.logger.Debug("Shop", "items", len(shop.MainCards()), "vouchers", len(shop.Vouchers()), "boosters", len(shop.Boosters()))

	if err := s.wait(ctx, s.cfg.Delays.Shop); err != nil {
		return err
	}
	blinds, err := s.cfg.Shop.Visit(ctx, shop)
	if err != nil {
		return fmt.Errorf("shop: %w", err)
	}
	s.publish(EventShop, map[string]any{"next_small": blinds.Small().Chips})
	return nil
}

// wait pauses for d on the session clock
func (s *Session) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := s.clock.NewTimer(d, "agent", "wait")
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) publish(kind string, data map[string]any) {
	s.events.Publish(Event{
		Type:    kind,
		Session: s.cfg.ID,
		Run:     s.runID,
		Time:    s.clock.Now(),
		Data:    data,
	})
}

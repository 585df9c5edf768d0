// Package host listens for the game to connect and plays one session per
// connection, one connection at a time.
package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/balatrobot/internal/agent"
	"github.com/lox/balatrobot/internal/fileutil"
	"github.com/lox/balatrobot/internal/protocol"
	"github.com/lox/balatrobot/internal/statistics"
)

// DefaultAddress is where the game's mod expects to find the bot
const DefaultAddress = "127.0.0.1:34143"

// Config controls the host
type Config struct {
	Address        string
	Session        agent.Config // template for every session; ID is assigned per connection
	RequestTimeout time.Duration
	ResultsFile    string // rewritten with the run summary after every session
	Clock          quartz.Clock
}

// Host accepts game connections and runs an agent session on each
type Host struct {
	logger    *log.Logger
	cfg       Config
	accepted  atomic.Int64
	completed atomic.Int64

	mu      sync.Mutex
	results statistics.Statistics
}

func New(logger *log.Logger, cfg Config) *Host {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Session.Clock == nil {
		cfg.Session.Clock = cfg.Clock
	}
	return &Host{
		logger: logger.WithPrefix("host"),
		cfg:    cfg,
	}
}

// Accepted returns the number of connections accepted so far
func (h *Host) Accepted() int64 {
	return h.accepted.Load()
}

// Completed returns the number of sessions that have finished
func (h *Host) Completed() int64 {
	return h.completed.Load()
}

// Results returns the run statistics of every finished session
func (h *Host) Results() statistics.Statistics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.results.Clone()
}

// ListenAndServe binds the configured address and serves until ctx is done
func (h *Host) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.cfg.Address, err)
	}
	return h.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. Sessions run one after
// another; the next connection is accepted when the current session ends.
func (h *Host) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		h.logger.Info("Waiting for the game to connect", "addr", ln.Addr().String())
		for {
			nc, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("accept: %w", err)
			}
			h.handle(gctx, nc)
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (h *Host) handle(ctx context.Context, nc net.Conn) {
	id := int(h.accepted.Add(1))
	remote := nc.RemoteAddr().String()
	logger := h.logger.With("remote", remote)
	logger.Info("Game connected", "session", id)

	var opts []protocol.Option
	opts = append(opts, protocol.WithClock(h.cfg.Clock))
	if h.cfg.RequestTimeout > 0 {
		opts = append(opts, protocol.WithRequestTimeout(h.cfg.RequestTimeout))
	}
	conn := protocol.NewConn(nc, logger, opts...)
	defer func() {
		_ = conn.Close() // Ignore close errors after the session
		h.completed.Add(1)
	}()

	cfg := h.cfg.Session
	cfg.ID = id
	session := agent.NewSession(conn, logger, cfg)

	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Session ended with error", "session", id, "error", err)
	}

	h.mu.Lock()
	h.results.Merge(session.Results())
	low, high := h.results.ConfidenceInterval95()
	logger.Info("Run statistics",
		"runs", h.results.Runs,
		"mean_rounds", h.results.Mean(),
		"ci95_low", low,
		"ci95_high", high,
		"median_rounds", h.results.Median(),
		"best_rounds", h.results.MaxRounds,
		"hands_per_round", h.results.HandsPerRound())
	summary := h.results.Summary()
	h.mu.Unlock()

	if h.cfg.ResultsFile != "" {
		if err := fileutil.WriteJSONAtomic(h.cfg.ResultsFile, summary, 0o644); err != nil {
			logger.Error("Failed to write results", "file", h.cfg.ResultsFile, "error", err)
		}
	}

	stats := conn.Stats()
	logger.Info("Game disconnected",
		"session", id,
		"sent", stats.Sent,
		"received", stats.Received,
		"pings", stats.Pings,
		"discarded", stats.Discarded)
}

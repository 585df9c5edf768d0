package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/balatrobot/internal/agent"
	"github.com/lox/balatrobot/internal/config"
	"github.com/lox/balatrobot/internal/host"
	"github.com/lox/balatrobot/internal/monitor"
)

// ServeCmd waits for the game and plays every session it opens
type ServeCmd struct {
	Config   string `short:"c" default:"balatrobot.hcl" help:"Path to HCL configuration file"`
	Host     string `help:"Address to listen on (overrides config)"`
	Port     int    `short:"p" help:"Port to listen on (overrides config)"`
	Strategy string `short:"s" help:"Discard strategy: smart or threshold (overrides config)"`
	Deck     string `help:"Deck for new runs, e.g. red or plasma (overrides config)"`
	Stake    string `help:"Stake for new runs, white to gold or 1-8 (overrides config)"`
	Seed     string `help:"Seed for new runs (overrides config)"`
	LogLevel string `short:"l" help:"Log level: debug, info, warn or error (overrides config)"`
	Monitor  string `short:"m" help:"Serve the event monitor on this address (overrides config)"`
	Results  string `help:"Write the run summary to this JSON file after each session (overrides config)"`
}

// apply copies command line overrides onto cfg
func (c *ServeCmd) apply(cfg *config.Config) {
	if c.Host != "" {
		cfg.Listen.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Listen.Port = c.Port
	}
	if c.Strategy != "" {
		cfg.Strategy.Name = c.Strategy
	}
	if c.Deck != "" {
		cfg.Run.Deck = c.Deck
	}
	if c.Stake != "" {
		cfg.Run.Stake = c.Stake
	}
	if c.Seed != "" {
		cfg.Run.Seed = c.Seed
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.Monitor != "" {
		cfg.Monitor.Address = c.Monitor
	}
	if c.Results != "" {
		cfg.Session.ResultsFile = c.Results
	}
}

// load reads the config file, applies overrides and validates the result
func (c *ServeCmd) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *ServeCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	hostCfg, hub, err := buildHost(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting balatrobot",
		"version", version,
		"addr", cfg.Address(),
		"strategy", hostCfg.Session.Planner.Name(),
		"deck", hostCfg.Session.Run.Back.Name(),
		"stake", hostCfg.Session.Run.Stake,
		"monitor", cfg.Monitor.Address)

	ctx := setupSignalHandler(logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return host.New(logger, hostCfg).ListenAndServe(gctx)
	})
	if hub != nil {
		g.Go(func() error {
			return hub.ListenAndServe(gctx, cfg.Monitor.Address)
		})
	}

	return g.Wait()
}

// buildHost turns a validated config into host settings, plus the monitor
// hub when one is configured
func buildHost(cfg *config.Config, logger *log.Logger) (host.Config, *monitor.Hub, error) {
	rc, err := cfg.RunConfig()
	if err != nil {
		return host.Config{}, nil, err
	}
	planner, err := cfg.Planner()
	if err != nil {
		return host.Config{}, nil, err
	}

	hc := host.Config{
		Address:        cfg.Address(),
		RequestTimeout: cfg.RequestTimeout(),
		ResultsFile:    cfg.Session.ResultsFile,
		Session: agent.Config{
			Run:       rc,
			Planner:   planner,
			Shop:      agent.LeaveShop{},
			Delays:    cfg.Timing.Delays(),
			MaxErrors: cfg.Session.MaxErrors,
		},
	}

	var hub *monitor.Hub
	if cfg.Monitor.Address != "" {
		hub = monitor.NewHub(logger, monitor.WithValidator(cfg.Monitor.Validator()))
		hc.Session.Events = hub
	}
	return hc, hub, nil
}

// setupLogger logs to stderr, or to the configured file
func setupLogger(cfg *config.Config) (*log.Logger, func(), error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeLog = func() { _ = f.Close() }
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	return logger, closeLog, nil
}

// setupSignalHandler returns a context that is cancelled on interrupt
func setupSignalHandler(logger *log.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	return ctx
}

// Package config loads the bot's HCL configuration file
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/balatrobot/internal/agent"
	"github.com/lox/balatrobot/internal/auth"
	"github.com/lox/balatrobot/internal/screen"
	"github.com/lox/balatrobot/internal/strategy"
)

// Config is the complete bot configuration
type Config struct {
	Listen   Listen
	Run      Run
	Strategy Strategy
	Timing   Timing
	Session  Session
	Monitor  Monitor
	Log      Log
}

// Listen is where the bot waits for the game to connect
type Listen struct {
	Host string `hcl:"host,optional"`
	Port int    `hcl:"port,optional"`
}

// Run selects how new runs start
type Run struct {
	Deck  string `hcl:"deck,optional"`
	Stake string `hcl:"stake,optional"`
	Seed  string `hcl:"seed,optional"`
}

// Strategy picks the discard planner
type Strategy struct {
	Name             string `hcl:"name,optional"`
	DiscardThreshold int    `hcl:"discard_threshold,optional"`
}

// Timing holds pauses in milliseconds. A negative pause disables it.
type Timing struct {
	ActionDelayMs    int `hcl:"action_delay_ms,optional"`
	BlindDelayMs     int `hcl:"blind_delay_ms,optional"`
	RetryDelayMs     int `hcl:"retry_delay_ms,optional"`
	ShopDelayMs      int `hcl:"shop_delay_ms,optional"`
	CashOutDelayMs   int `hcl:"cash_out_delay_ms,optional"`
	GameOverDelayMs  int `hcl:"game_over_delay_ms,optional"`
	RequestTimeoutMs int `hcl:"request_timeout_ms,optional"`
}

// Session limits a single game connection. When ResultsFile is set the run
// summary is rewritten there after every session.
type Session struct {
	MaxErrors   int    `hcl:"max_errors,optional"`
	ResultsFile string `hcl:"results_file,optional"`
}

// Monitor enables the HTTP event feed when Address is set. The feed needs
// a bearer token when Token or AuthURL is set.
type Monitor struct {
	Address string `hcl:"address,optional"`
	Token   string `hcl:"token,optional"`
	AuthURL string `hcl:"auth_url,optional"`
}

// Log configures logging. An empty File logs to stderr.
type Log struct {
	Level string `hcl:"level,optional"`
	File  string `hcl:"file,optional"`
}

// file mirrors Config with optional blocks
type file struct {
	Listen   *Listen   `hcl:"listen,block"`
	Run      *Run      `hcl:"run,block"`
	Strategy *Strategy `hcl:"strategy,block"`
	Timing   *Timing   `hcl:"timing,block"`
	Session  *Session  `hcl:"session,block"`
	Monitor  *Monitor  `hcl:"monitor,block"`
	Log      *Log      `hcl:"log,block"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Listen: Listen{
			Host: "127.0.0.1",
			Port: 34143,
		},
		Run: Run{
			Deck:  "red",
			Stake: "white",
		},
		Strategy: Strategy{
			Name:             "smart",
			DiscardThreshold: strategy.DefaultThreshold,
		},
		Timing: Timing{
			ActionDelayMs:   100,
			BlindDelayMs:    500,
			RetryDelayMs:    1000,
			ShopDelayMs:     1000,
			CashOutDelayMs:  2000,
			GameOverDelayMs: 1000,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads filename. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and fills anything left unset with defaults
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw file
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := Default()
	defaults := Default()

	if raw.Listen != nil {
		cfg.Listen = *raw.Listen
		cfg.Listen.Host = orString(cfg.Listen.Host, defaults.Listen.Host)
		cfg.Listen.Port = orInt(cfg.Listen.Port, defaults.Listen.Port)
	}
	if raw.Run != nil {
		cfg.Run = *raw.Run
		cfg.Run.Deck = orString(cfg.Run.Deck, defaults.Run.Deck)
		cfg.Run.Stake = orString(cfg.Run.Stake, defaults.Run.Stake)
	}
	if raw.Strategy != nil {
		cfg.Strategy = *raw.Strategy
		cfg.Strategy.Name = orString(cfg.Strategy.Name, defaults.Strategy.Name)
		cfg.Strategy.DiscardThreshold = orInt(cfg.Strategy.DiscardThreshold, defaults.Strategy.DiscardThreshold)
	}
	if raw.Timing != nil {
		t := *raw.Timing
		t.ActionDelayMs = orInt(t.ActionDelayMs, defaults.Timing.ActionDelayMs)
		t.BlindDelayMs = orInt(t.BlindDelayMs, defaults.Timing.BlindDelayMs)
		t.RetryDelayMs = orInt(t.RetryDelayMs, defaults.Timing.RetryDelayMs)
		t.ShopDelayMs = orInt(t.ShopDelayMs, defaults.Timing.ShopDelayMs)
		t.CashOutDelayMs = orInt(t.CashOutDelayMs, defaults.Timing.CashOutDelayMs)
		t.GameOverDelayMs = orInt(t.GameOverDelayMs, defaults.Timing.GameOverDelayMs)
		cfg.Timing = t
	}
	if raw.Session != nil {
		cfg.Session = *raw.Session
	}
	if raw.Monitor != nil {
		cfg.Monitor = *raw.Monitor
	}
	if raw.Log != nil {
		cfg.Log = *raw.Log
		cfg.Log.Level = orString(cfg.Log.Level, defaults.Log.Level)
	}

	return cfg, nil
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Validate checks every setting that can be checked without the network
func (c *Config) Validate() error {
	if c.Listen.Host == "" {
		return fmt.Errorf("listen host is required")
	}
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen port %d out of range", c.Listen.Port)
	}

	if _, err := c.RunConfig(); err != nil {
		return err
	}
	if _, err := c.Planner(); err != nil {
		return err
	}
	if t := c.Strategy.DiscardThreshold; t < 0 || t > deckRanks {
		return fmt.Errorf("discard threshold %d out of range 0-%d", t, deckRanks)
	}

	if c.Timing.RequestTimeoutMs < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	if c.Session.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative")
	}

	if c.Monitor.Address != "" {
		if _, _, err := net.SplitHostPort(c.Monitor.Address); err != nil {
			return fmt.Errorf("invalid monitor address %q: %w", c.Monitor.Address, err)
		}
	}
	if c.Monitor.Token != "" && c.Monitor.AuthURL != "" {
		return fmt.Errorf("monitor token and auth_url are mutually exclusive")
	}
	if c.Monitor.AuthURL != "" {
		u, err := url.Parse(c.Monitor.AuthURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid monitor auth_url %q", c.Monitor.AuthURL)
		}
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// deckRanks is the number of ranks; a threshold at it discards everything
const deckRanks = 13

// Address is the host:port to listen on
func (c *Config) Address() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

// RunConfig resolves the deck and stake names
func (c *Config) RunConfig() (screen.RunConfig, error) {
	back, err := screen.ParseBack(c.Run.Deck)
	if err != nil {
		return screen.RunConfig{}, err
	}
	stake, err := screen.ParseStake(c.Run.Stake)
	if err != nil {
		return screen.RunConfig{}, err
	}
	return screen.RunConfig{Back: back, Stake: stake, Seed: strings.TrimSpace(c.Run.Seed)}, nil
}

// Planner builds the configured strategy
func (c *Config) Planner() (strategy.Planner, error) {
	return strategy.NewPlanner(c.Strategy.Name, c.Strategy.DiscardThreshold)
}

// LogLevel parses the configured level
func (c *Config) LogLevel() (log.Level, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return 0, fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	return level, nil
}

// Validator returns the monitor's token check, or nil when the feed is open
func (m Monitor) Validator() auth.Validator {
	switch {
	case m.Token != "":
		return auth.NewStaticValidator(m.Token)
	case m.AuthURL != "":
		return auth.NewHTTPValidator(m.AuthURL, 0)
	default:
		return nil
	}
}

// RequestTimeout is zero when requests may wait forever
func (c *Config) RequestTimeout() time.Duration {
	return millis(c.Timing.RequestTimeoutMs)
}

// Delays converts the timing block into session pauses
func (t Timing) Delays() agent.Delays {
	return agent.Delays{
		Loop:     millis(t.ActionDelayMs),
		Blind:    millis(t.BlindDelayMs),
		Retry:    millis(t.RetryDelayMs),
		Shop:     millis(t.ShopDelayMs),
		CashOut:  millis(t.CashOutDelayMs),
		GameOver: millis(t.GameOverDelayMs),
	}
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

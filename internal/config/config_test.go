package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/balatrobot/internal/auth"
	"github.com/lox/balatrobot/internal/screen"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:34143", cfg.Address())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balatrobot.hcl")
	src := `
listen {
  host = "0.0.0.0"
  port = 40000
}

run {
  deck  = "plasma"
  stake = "gold"
  seed  = "ABC123"
}

strategy {
  name = "threshold"
  discard_threshold = 10
}

timing {
  action_delay_ms    = 50
  cash_out_delay_ms  = -1
  request_timeout_ms = 3000
}

session {
  max_errors   = 5
  results_file = "runs.json"
}

monitor {
  address = "127.0.0.1:8081"
  token   = "s3cret"
}

log {
  level = "debug"
  file  = "bot.log"
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:40000", cfg.Address())

	rc, err := cfg.RunConfig()
	require.NoError(t, err)
	assert.Equal(t, screen.RunConfig{Back: screen.BackPlasma, Stake: screen.StakeGold, Seed: "ABC123"}, rc)

	planner, err := cfg.Planner()
	require.NoError(t, err)
	assert.Equal(t, "threshold", planner.Name())

	delays := cfg.Timing.Delays()
	assert.Equal(t, 50*time.Millisecond, delays.Loop)
	assert.Equal(t, 500*time.Millisecond, delays.Blind, "unset values keep their default")
	assert.Zero(t, delays.CashOut, "negative disables the pause")
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout())

	assert.Equal(t, 5, cfg.Session.MaxErrors)
	assert.Equal(t, "runs.json", cfg.Session.ResultsFile)
	assert.Equal(t, "127.0.0.1:8081", cfg.Monitor.Address)
	assert.IsType(t, &auth.StaticValidator{}, cfg.Monitor.Validator())
	assert.Equal(t, "bot.log", cfg.Log.File)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, level)
}

func TestParsePartialBlocks(t *testing.T) {
	cfg, err := Parse([]byte(`listen { port = 9000 }`), "partial.hcl")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Listen.Host)
	assert.Equal(t, 9000, cfg.Listen.Port)
	assert.Equal(t, Default().Timing, cfg.Timing)
	assert.Equal(t, "smart", cfg.Strategy.Name)
	assert.Nil(t, cfg.Monitor.Validator())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `listen {`},
		{"unknown block", `server { url = "x" }`},
		{"unknown attribute", `listen { address = "x" }`},
		{"wrong type", `listen { port = "high" }`},
		{"duplicate block", "run {}\nrun {}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl")
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port", func(c *Config) { c.Listen.Port = 70000 }},
		{"host", func(c *Config) { c.Listen.Host = "" }},
		{"deck", func(c *Config) { c.Run.Deck = "purple" }},
		{"stake", func(c *Config) { c.Run.Stake = "platinum" }},
		{"strategy", func(c *Config) { c.Strategy.Name = "random" }},
		{"threshold", func(c *Config) { c.Strategy.DiscardThreshold = 20 }},
		{"request timeout", func(c *Config) { c.Timing.RequestTimeoutMs = -5 }},
		{"max errors", func(c *Config) { c.Session.MaxErrors = -1 }},
		{"monitor address", func(c *Config) { c.Monitor.Address = "8081" }},
		{"monitor token and auth url", func(c *Config) { c.Monitor.Token = "t"; c.Monitor.AuthURL = "http://auth/check" }},
		{"monitor auth url scheme", func(c *Config) { c.Monitor.AuthURL = "ftp://auth/check" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExampleFileLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "balatrobot.example.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Default(), cfg)
}

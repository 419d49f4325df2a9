package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode selects whether the agent coordinates with a teammate.
const (
	ModeSingleAgent = "single"
	ModeCoOp        = "coop"
)

type Config struct {
	APIHost     string `toml:"api_host"`
	ClientToken string `toml:"client_token"`
	AgentName   string `toml:"agent_name"`
	Mode        string `toml:"mode"`

	Team    TeamConfig    `toml:"team"`
	Runtime RuntimeConfig `toml:"runtime"`
	Trace   TraceConfig   `toml:"trace"`

	Path string `toml:"-"`
}

// TeamConfig identifies the cooperating pair. TeamKey doubles as the
// handshake shared secret.
type TeamConfig struct {
	TeamKey          string `toml:"team_key"`
	HelloIntervalMS  int    `toml:"hello_interval_ms"`
	AskTimeoutMS     int    `toml:"ask_timeout_ms"`
	PartitionEveryMS int    `toml:"partition_every_ms"`
}

type RuntimeConfig struct {
	LoopIntervalMS int     `toml:"loop_interval_ms"`
	PreemptMargin  float64 `toml:"preempt_margin"`
	LogLevel       string  `toml:"log_level"`

	// UsePDDL is accepted for config compatibility; no solver backend
	// ships, plans stay A*-based.
	UsePDDL bool `toml:"use_pddl"`
}

type TraceConfig struct {
	DBPath string `toml:"db_path"`
}

func Load(path string) (Config, error) {
	resolved := path
	if resolved == "" {
		resolved = defaultConfigPath()
	}
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	cfg.Path = resolved
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.APIHost == "" {
		c.APIHost = "ws://localhost:8080/ws"
	}
	if c.AgentName == "" {
		c.AgentName = "courier"
	}
	if c.Mode == "" {
		c.Mode = ModeSingleAgent
	}
	if c.Team.HelloIntervalMS <= 0 {
		c.Team.HelloIntervalMS = 1000
	}
	if c.Team.AskTimeoutMS <= 0 {
		c.Team.AskTimeoutMS = 3000
	}
	if c.Team.PartitionEveryMS <= 0 {
		c.Team.PartitionEveryMS = 10000
	}
	if c.Runtime.LoopIntervalMS <= 0 {
		c.Runtime.LoopIntervalMS = 50
	}
	if c.Runtime.PreemptMargin <= 0 {
		c.Runtime.PreemptMargin = 0.05
	}
	if c.Runtime.LogLevel == "" {
		c.Runtime.LogLevel = "info"
	}
	if c.Trace.DBPath == "" {
		c.Trace.DBPath = "gridcourier.db"
	}
	return c
}

// Validate rejects configurations that cannot start an agent.
func (c Config) Validate() error {
	if c.Mode != ModeSingleAgent && c.Mode != ModeCoOp {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.Mode == ModeCoOp && c.Team.TeamKey == "" {
		return fmt.Errorf("coop mode requires team.team_key")
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gridcourier/config.toml"
	}
	return filepath.Join(home, ".gridcourier", "config.toml")
}

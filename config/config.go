package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the working-directory relative configuration file.
const DefaultPath = "config.yml"

type Config struct {
	Bookflow   BookflowConfig   `yaml:"bookflow"`
	Pair       PairConfig       `yaml:"pair"`
	Display    DisplayConfig    `yaml:"display"`
	Feeds      FeedsConfig      `yaml:"feeds"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type BookflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type PairConfig struct {
	HLSymbol  string `yaml:"hl_symbol"`
	PDXSymbol string `yaml:"pdx_symbol"`
}

type DisplayConfig struct {
	Depth  int `yaml:"depth"`
	TickMs int `yaml:"tick_ms"`
}

type FeedsConfig struct {
	// BookDepth is the per-venue subscription depth kept by each feed.
	BookDepth   int             `yaml:"book_depth"`
	Hyperliquid VenueFeedConfig `yaml:"hyperliquid"`
	Paradex     VenueFeedConfig `yaml:"paradex"`
	Reconnect   ReconnectConfig `yaml:"reconnect"`
}

type VenueFeedConfig struct {
	WSURL            string   `yaml:"ws_url"`
	RestURL          string   `yaml:"rest_url"`
	Heartbeat        Duration `yaml:"heartbeat"`
	ResubscribeOnGap bool     `yaml:"resubscribe_on_gap"`
}

type ReconnectConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

type ValidationConfig struct {
	RequestsPerSecond int      `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	Timeout           Duration `yaml:"timeout"`
	Sample            int      `yaml:"sample"`
}

// Duration wraps time.Duration so yaml values like "30s" decode directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// LoadConfig reads, env-expands and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Pair.HLSymbol = strings.ToUpper(strings.TrimSpace(config.Pair.HLSymbol))
	config.Pair.PDXSymbol = strings.ToUpper(strings.TrimSpace(config.Pair.PDXSymbol))

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Bookflow: BookflowConfig{Name: "bookflow", Version: "dev"},
		Display:  DisplayConfig{Depth: 5, TickMs: 100},
		Feeds: FeedsConfig{
			BookDepth: 20,
			Hyperliquid: VenueFeedConfig{
				WSURL:     "wss://api.hyperliquid.xyz/ws",
				RestURL:   "https://api.hyperliquid.xyz/info",
				Heartbeat: Duration(20 * time.Second),
			},
			Paradex: VenueFeedConfig{
				WSURL:     "wss://ws.api.prod.paradex.trade/v1",
				RestURL:   "https://api.prod.paradex.trade/v1",
				Heartbeat: Duration(20 * time.Second),
			},
			Reconnect: ReconnectConfig{
				BaseDelay: Duration(time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Validation: ValidationConfig{
			RequestsPerSecond: 5,
			Burst:             1,
			Timeout:           Duration(10 * time.Second),
			Sample:            10,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stderr", MaxAge: 7},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Bookflow.Name == "" {
		return fmt.Errorf("bookflow.name is required")
	}

	if cfg.Pair.HLSymbol == "" {
		return fmt.Errorf("pair.hl_symbol must not be empty")
	}
	if cfg.Pair.PDXSymbol == "" {
		return fmt.Errorf("pair.pdx_symbol must not be empty")
	}

	if cfg.Display.Depth < 1 || cfg.Display.Depth > 10 {
		return fmt.Errorf("display.depth must be between 1 and 10, got %d", cfg.Display.Depth)
	}
	if cfg.Display.TickMs < 50 || cfg.Display.TickMs > 2000 {
		return fmt.Errorf("display.tick_ms must be between 50 and 2000, got %d", cfg.Display.TickMs)
	}

	if cfg.Feeds.BookDepth <= 0 {
		return fmt.Errorf("feeds.book_depth must be greater than 0")
	}
	if cfg.Feeds.Hyperliquid.WSURL == "" {
		return fmt.Errorf("feeds.hyperliquid.ws_url is required")
	}
	if cfg.Feeds.Paradex.WSURL == "" {
		return fmt.Errorf("feeds.paradex.ws_url is required")
	}
	if cfg.Feeds.Hyperliquid.Heartbeat <= 0 || cfg.Feeds.Paradex.Heartbeat <= 0 {
		return fmt.Errorf("feeds heartbeat intervals must be greater than 0")
	}
	if cfg.Feeds.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("feeds.reconnect.base_delay must be greater than 0")
	}
	if cfg.Feeds.Reconnect.MaxDelay < cfg.Feeds.Reconnect.BaseDelay {
		return fmt.Errorf("feeds.reconnect.max_delay must be >= base_delay")
	}

	if cfg.Validation.RequestsPerSecond <= 0 {
		return fmt.Errorf("validation.requests_per_second must be greater than 0")
	}
	if cfg.Validation.Sample <= 0 {
		return fmt.Errorf("validation.sample must be greater than 0")
	}

	return nil
}

// Tick returns the display refresh interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Display.TickMs) * time.Millisecond
}

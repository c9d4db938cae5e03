package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "configs/herd.json"

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `json:"server"`
	World    WorldConfig    `json:"world"`
	Speech   SpeechConfig   `json:"speech"`
	Sound    SoundConfig    `json:"sound"`
	Species  SpeciesConfig  `json:"species"`
	Gateway  GatewayConfig  `json:"gateway"`
	Database DatabaseConfig `json:"database"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type WorldConfig struct {
	TickIntervalMS  int          `json:"tick_interval_ms"`
	Speed           float64      `json:"speed"`
	Screen          ScreenConfig `json:"screen"`
	Spawn           []string     `json:"spawn,omitempty"` // species ids spawned when nothing was restored
	AutosaveSeconds int          `json:"autosave_seconds"`
}

type ScreenConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type SpeechConfig struct {
	Enabled    bool `json:"enabled"`
	DurationMS int  `json:"duration_ms"`
}

type SoundConfig struct {
	Enabled bool `json:"enabled"`
}

type SpeciesConfig struct {
	Dir   string `json:"dir"`
	Watch bool   `json:"watch"`
}

type GatewayConfig struct {
	History int            `json:"history"`
	WSQueue int            `json:"ws_queue"`
	Log     bool           `json:"log"`
	Redis   RedisBusConfig `json:"redis"`
}

type RedisBusConfig struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix"`
	Frames  bool   `json:"frames"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN        string `json:"dsn"`
	Migrations string `json:"migrations"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

// TickInterval returns the clock period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.World.TickIntervalMS) * time.Millisecond
}

// SpeechDuration returns how long a caption stays up.
func (c *Config) SpeechDuration() time.Duration {
	return time.Duration(c.Speech.DurationMS) * time.Millisecond
}

// AutosaveInterval returns the membership save period, zero when disabled.
func (c *Config) AutosaveInterval() time.Duration {
	return time.Duration(c.World.AutosaveSeconds) * time.Second
}

// Defaults fills zero values. Booleans are left as configured.
func (c *Config) Defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3210
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.World.TickIntervalMS == 0 {
		c.World.TickIntervalMS = 40
	}
	if c.World.Speed == 0 {
		c.World.Speed = 1
	}
	if c.World.Screen.Width == 0 {
		c.World.Screen.Width = 1280
	}
	if c.World.Screen.Height == 0 {
		c.World.Screen.Height = 800
	}
	if c.Speech.DurationMS == 0 {
		c.Speech.DurationMS = 2000
	}
	if c.Species.Dir == "" {
		c.Species.Dir = "species"
	}
	if c.Gateway.History == 0 {
		c.Gateway.History = 256
	}
	if c.Gateway.WSQueue == 0 {
		c.Gateway.WSQueue = 64
	}
	if c.Gateway.Redis.Prefix == "" {
		c.Gateway.Redis.Prefix = "herd:"
	}
	if c.Database.Postgres.Migrations == "" {
		c.Database.Postgres.Migrations = "migrations"
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.World.TickIntervalMS < 0:
		return fmt.Errorf("world.tick_interval_ms must be positive")
	case c.World.Speed < 0:
		return fmt.Errorf("world.speed must be positive")
	case c.World.Screen.Width < 0 || c.World.Screen.Height < 0:
		return fmt.Errorf("world.screen must be positive")
	case c.Speech.DurationMS < 0:
		return fmt.Errorf("speech.duration_ms must be positive")
	case c.World.AutosaveSeconds < 0:
		return fmt.Errorf("world.autosave_seconds must not be negative")
	case c.Gateway.Redis.Enabled && c.Database.Redis.URL == "":
		return fmt.Errorf("gateway.redis requires database.redis.url")
	}
	return nil
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

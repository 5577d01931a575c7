// Package config loads server configuration from an optional YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Game struct {
		RoomCapacity       int `yaml:"room_capacity"`
		SecondsBeforeStart int `yaml:"seconds_before_start"`
		SecondsForGame     int `yaml:"seconds_for_game"`
	} `yaml:"game"`
	Texts struct {
		// Path to an external corpus file; empty means the embedded corpus.
		Path string `yaml:"path"`
	} `yaml:"texts"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file and no environment
// overrides are present. The game constants mirror the classic setup: rooms
// of five, ten seconds to fetch the text, sixty seconds to type it.
func Default() Config {
	var cfg Config
	cfg.Server.Addr = ":8080"
	cfg.Game.RoomCapacity = 5
	cfg.Game.SecondsBeforeStart = 10
	cfg.Game.SecondsForGame = 60
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("ADDR", c.Server.Addr)
	c.Game.RoomCapacity = getEnvAsInt("ROOM_CAPACITY", c.Game.RoomCapacity)
	c.Game.SecondsBeforeStart = getEnvAsInt("SECONDS_BEFORE_START", c.Game.SecondsBeforeStart)
	c.Game.SecondsForGame = getEnvAsInt("SECONDS_FOR_GAME", c.Game.SecondsForGame)
	c.Texts.Path = getEnv("TEXTS_PATH", c.Texts.Path)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

func (c *Config) validate() error {
	if c.Game.RoomCapacity < 2 {
		return fmt.Errorf("room capacity must be at least 2, got %d", c.Game.RoomCapacity)
	}
	if c.Game.SecondsBeforeStart < 1 || c.Game.SecondsForGame < 1 {
		return fmt.Errorf("countdown lengths must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

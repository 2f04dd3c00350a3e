package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds process configuration. Values resolve in order: defaults,
// then the optional yaml file, then environment variables.
type Config struct {
	Addr             string `yaml:"addr"`
	MatchDurationSec int    `yaml:"match_duration_sec"`
	NATSURL          string `yaml:"nats_url"` // empty disables event publishing
	LogLevel         string `yaml:"log_level"`
	WebDir           string `yaml:"web_dir"`
}

func defaultConfig() Config {
	return Config{
		Addr:             ":8080",
		MatchDurationSec: 10,
		LogLevel:         "info",
		WebDir:           "web",
	}
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

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// resolveConfig builds the effective configuration. The config file path
// comes from ARENA_CONFIG; a missing default file is not an error.
func resolveConfig() (Config, error) {
	cfg := defaultConfig()

	path := os.Getenv("ARENA_CONFIG")
	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	} else if _, err := os.Stat("config.yaml"); err == nil {
		if err := loadConfigFile("config.yaml", &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Addr = getEnv("ARENA_ADDR", cfg.Addr)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.MatchDurationSec = getEnvAsInt("ARENA_MATCH_DURATION_SEC", cfg.MatchDurationSec)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.LogLevel = getEnv("ARENA_LOG_LEVEL", cfg.LogLevel)
	cfg.WebDir = getEnv("ARENA_WEB_DIR", cfg.WebDir)

	return cfg, nil
}

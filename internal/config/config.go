package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds process-wide configuration loaded from the environment.
type Config struct {
	DatabaseURL        string
	ServerHost         string
	ServerPort         int
	LogLevel           string
	ExchangeRateAPIKey string
	Environment        string
}

// Load reads ENVIRONMENT to pick an env file (.env.<name>, falling back
// to .env), then builds the config. DATABASE_URL is the only hard
// requirement.
func Load() (Config, error) {
	env := getenv("ENVIRONMENT", "development")
	envFile := fmt.Sprintf(".env.%s", env)

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Str("file", envFile).Err(err).Msg("Failed to load env file")
		}
	} else {
		// Best effort; a missing .env is fine when the environment is
		// already populated.
		_ = godotenv.Load()
	}

	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ServerHost:         getenv("SERVER_HOST", "127.0.0.1"),
		ServerPort:         getenvInt("SERVER_PORT", 8080),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		ExchangeRateAPIKey: getenv("EXCHANGE_RATE_API_KEY", ""),
		Environment:        env,
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// Addr returns the host:port pair the HTTP server binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

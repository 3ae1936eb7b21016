package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/luiza-sangalli/segment/internal/store"
)

// ErrInvalidCapacity is returned when RECENT_EVENTS_CAPACITY is not a positive integer.
var ErrInvalidCapacity = errors.New("RECENT_EVENTS_CAPACITY must be a positive integer")

// Config contains runtime configuration required by the service.
type Config struct {
	Port           string
	DBURL          string // optional; enables the Postgres archive
	AdminAPIKey    string // optional; guards filter updates when set
	LogLevel       string
	LogFormat      string // "text" or "json"
	GinMode        string
	RecentCapacity int
}

// LoadDotEnv seeds the environment from the given .env files (".env" when
// none are given). A missing file is not an error; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		Port:           envOr("PORT", "8000"),
		DBURL:          strings.TrimSpace(os.Getenv("DB_URL")),
		AdminAPIKey:    strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFormat:      envOr("LOG_FORMAT", "text"),
		GinMode:        envOr("GIN_MODE", "release"),
		RecentCapacity: store.DefaultCapacity,
	}

	if raw := strings.TrimSpace(os.Getenv("RECENT_EVENTS_CAPACITY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%w: %q", ErrInvalidCapacity, raw)
		}
		cfg.RecentCapacity = n
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("PORT must be numeric: %q", cfg.Port)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT must be text or json: %q", cfg.LogFormat)
	}

	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		return Config{}, fmt.Errorf("GIN_MODE must be debug, release or test: %q", cfg.GinMode)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

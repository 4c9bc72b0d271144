// Package config reads the server's environment-variable configuration
// surface (spec.md §6), following the teacher's envIntOrDefault-style
// env-first pattern, with an optional .env file loaded first via
// github.com/joho/godotenv.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the resolved server configuration. Every field has a default,
// per spec.md §6's configuration surface table.
type Config struct {
	BindHost string
	Port     int

	DBPath string

	RoomIdleWindow  time.Duration
	PersistInterval time.Duration
	CORSOrigins     []string
}

const (
	defaultBindHost        = "0.0.0.0"
	defaultPort            = 8080
	defaultDBPath          = "./berrypoker.db"
	defaultRoomIdleWindow  = 24 * time.Hour
	defaultPersistInterval = 30 * time.Second
)

// Load reads an optional .env file (ignored if absent) and then the
// process environment, per spec.md §6's configuration table.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		BindHost:        envStringOrDefault("BIND_HOST", defaultBindHost),
		Port:            envIntOrDefault("PORT", defaultPort),
		DBPath:          envStringOrDefault("DB_PATH", defaultDBPath),
		RoomIdleWindow:  envDurationOrDefault("ROOM_IDLE_WINDOW", defaultRoomIdleWindow),
		PersistInterval: envDurationOrDefault("PERSIST_INTERVAL", defaultPersistInterval),
		CORSOrigins:     envCORSOriginsOrDefault("CORS_ORIGINS"),
	}
}

// Addr is the listen address built from BindHost and Port.
func (c Config) Addr() string {
	return c.BindHost + ":" + strconv.Itoa(c.Port)
}

func envStringOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// envCORSOriginsOrDefault parses a comma-separated origin list; an unset
// or empty variable means "*" (spec.md §6's default: allow all origins).
func envCORSOriginsOrDefault(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return []string{"*"}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

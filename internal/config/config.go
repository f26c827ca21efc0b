package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DataPath    string
	ListenAddr  string
	SiteTitle   string
	LockTimeout time.Duration
	HistoryMax  int
}

func Load() Config {
	loadEnvFile()
	return Config{
		DataPath:    os.Getenv("CURATOR_DATA_PATH"),
		ListenAddr:  envOr("CURATOR_LISTEN_ADDR", "127.0.0.1:8080"),
		SiteTitle:   envOr("CURATOR_SITE_TITLE", "Museum Wiki"),
		LockTimeout: parseDurationOr("CURATOR_LOCK_TIMEOUT", 5*time.Second),
		HistoryMax:  parseIntOr("CURATOR_HISTORY_MAX", 100),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

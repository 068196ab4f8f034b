package config

import (
	"os"
	"strings"
)

type AppConfig struct {
	// address the websocket server listens on
	ListenAddr string
	// optional second listener for /healthz and /stats; empty disables it
	OpsAddr string

	// optional archive backends; empty disables each
	RedisURL    string
	DatabaseURL string

	// optional directory of YAML files overriding user-facing messages
	MessageDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr: ":3000",
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.OpsAddr = strings.TrimSpace(os.Getenv("OPS_ADDR"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	return cfg, nil
}

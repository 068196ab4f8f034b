package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Fatalf("unexpected default listen addr: %q", cfg.ListenAddr)
	}
	if cfg.OpsAddr != "" || cfg.RedisURL != "" || cfg.DatabaseURL != "" {
		t.Fatalf("optional backends must default to disabled: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":8080")
	t.Setenv("OPS_ADDR", ":9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.OpsAddr != ":9090" || cfg.RedisURL == "" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

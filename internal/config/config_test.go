package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Auth.CookieName != "auth-token" {
		t.Errorf("cookie name = %q", cfg.Auth.CookieName)
	}
	if cfg.Proventos.ChunkSize != 50 {
		t.Errorf("chunk size = %d", cfg.Proventos.ChunkSize)
	}
	if cfg.Hotmart.PlanDurationDays != 365 {
		t.Errorf("plan duration = %d", cfg.Hotmart.PlanDurationDays)
	}
	if len(cfg.Server.AllowOrigins) != 0 {
		t.Errorf("allow origins = %v", cfg.Server.AllowOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MEMBROS_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("MEMBROS_AUTH_JWTSECRET", "s3cret")
	t.Setenv("MEMBROS_AUTH_TOKENTTLMINUTES", "30")
	t.Setenv("MEMBROS_BRAPI_TOKEN", "brapi-token")
	t.Setenv("MEMBROS_SERVER_ALLOWORIGINS", "https://membros.fatosdabolsa.com.br,http://localhost:3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTLMinutes != 30 {
		t.Errorf("token ttl = %d", cfg.Auth.TokenTTLMinutes)
	}
	if cfg.Brapi.Token != "brapi-token" {
		t.Errorf("brapi token = %q", cfg.Brapi.Token)
	}
	if len(cfg.Server.AllowOrigins) != 2 || cfg.Server.AllowOrigins[1] != "http://localhost:3000" {
		t.Errorf("allow origins = %v", cfg.Server.AllowOrigins)
	}
}

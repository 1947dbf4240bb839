package config

import (
	"os"
	"testing"
)

func setenv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %q", cfg.Port)
	}
	if cfg.HandoverSLAHours != 6 {
		t.Errorf("expected default SLA 6h, got %d", cfg.HandoverSLAHours)
	}
	if cfg.SweepIntervalMinutes != 15 {
		t.Errorf("expected default sweep interval 15m, got %d", cfg.SweepIntervalMinutes)
	}
	if cfg.RequestNumberPrefix != "CN" || cfg.BatchNumberPrefix != "BN" || cfg.FilingNumberPrefix != "FN" {
		t.Errorf("unexpected number prefixes: %q %q %q",
			cfg.RequestNumberPrefix, cfg.BatchNumberPrefix, cfg.FilingNumberPrefix)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	setenv(t, "PORT", "9100")
	setenv(t, "HANDOVER_SLA_HOURS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("expected port 9100, got %q", cfg.Port)
	}
	if cfg.HandoverSLAHours != 12 {
		t.Errorf("expected SLA 12h, got %d", cfg.HandoverSLAHours)
	}
}

func TestLoad_InvalidSLA(t *testing.T) {
	setenv(t, "HANDOVER_SLA_HOURS", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative SLA")
	}
}

func TestIsDev(t *testing.T) {
	cases := []struct {
		env, mode string
		want      bool
	}{
		{"development", "", true},
		{"production", "", false},
		{"production", "dev", true},
		{"development", "jwt", false},
	}
	for _, c := range cases {
		cfg := &Config{Env: c.env, AuthMode: c.mode}
		if got := cfg.IsDev(); got != c.want {
			t.Errorf("IsDev(env=%q mode=%q) = %v, want %v", c.env, c.mode, got, c.want)
		}
	}
}

func TestLoad_CORSOriginsSplit(t *testing.T) {
	setenv(t, "CORS_ORIGINS", "http://a.example,http://b.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
}

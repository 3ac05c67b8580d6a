package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"org": "example-org",
		"role_limits": {"admin": 20, "collaborator": 5, "contributor": 2},
		"usd_price_max": {"collaborator": 2000, "contributor": 500}
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.TaskAccessScope != "org" {
		t.Errorf("default scope = %q, want org", cfg.TaskAccessScope)
	}
	if cfg.RateLimits.ValidatePerMinute != 10 || cfg.RateLimits.ExecutePerMinute != 3 {
		t.Errorf("default rate limits = %+v", cfg.RateLimits)
	}
	if cfg.RoleLimits["contributor"] != 2 {
		t.Errorf("contributor limit = %d, want 2", cfg.RoleLimits["contributor"])
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing org", body: `{"role_limits": {"contributor": 2}}`},
		{name: "missing role limits", body: `{"org": "x"}`},
		{name: "bad scope", body: `{"org": "x", "task_access_scope": "global", "role_limits": {"contributor": 2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSmallestRoleLimit(t *testing.T) {
	cfg := &Config{RoleLimits: map[string]int{"admin": 20, "collaborator": 5, "contributor": 2}}
	role, limit := cfg.SmallestRoleLimit()
	if role != "contributor" || limit != 2 {
		t.Errorf("SmallestRoleLimit() = (%q, %d), want (contributor, 2)", role, limit)
	}
}

func TestSmallestPriceCeiling(t *testing.T) {
	cfg := &Config{UsdPriceMax: map[string]float64{"collaborator": 2000, "contributor": 500}}
	ceiling, ok := cfg.SmallestPriceCeiling()
	if !ok || ceiling != 500 {
		t.Errorf("SmallestPriceCeiling() = (%v, %v), want (500, true)", ceiling, ok)
	}

	empty := &Config{}
	if _, ok := empty.SmallestPriceCeiling(); ok {
		t.Error("expected no ceiling on empty map")
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	if err := CreateDefaultConfig(path); err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Org == "" || len(cfg.RoleLimits) == 0 {
		t.Errorf("default config incomplete: %+v", cfg)
	}
}

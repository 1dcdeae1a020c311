package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Thresholds.DefaultLimit != 15000 {
		t.Errorf("DefaultLimit = %d, want 15000", cfg.Thresholds.DefaultLimit)
	}
	if cfg.Thresholds.DaysWarn != 45 || cfg.Thresholds.DaysMax != 55 {
		t.Errorf("day thresholds = %d/%d, want 45/55", cfg.Thresholds.DaysWarn, cfg.Thresholds.DaysMax)
	}
	if cfg.Thresholds.MileageWarn != 23000 || cfg.Thresholds.MileageMax != 25000 {
		t.Errorf("mileage thresholds = %d/%d, want 23000/25000", cfg.Thresholds.MileageWarn, cfg.Thresholds.MileageMax)
	}
	if cfg.Thresholds.GetAvgCacheTTL() != time.Hour {
		t.Errorf("cache TTL = %v, want 1h", cfg.Thresholds.GetAvgCacheTTL())
	}
	if cfg.Jobs.WorkerMaxAttempts != 5 {
		t.Errorf("WorkerMaxAttempts = %d, want 5", cfg.Jobs.WorkerMaxAttempts)
	}
}

func TestServiceLimitFor(t *testing.T) {
	thresholds := DefaultConfig().Thresholds

	tests := []struct {
		trainType string
		expected  int64
	}{
		{"Ласточка", 15000},
		{"Финист", 20000},
		{"Сапсан", 25000},
		{"что-то новое", 15000}, // fallback
		{"", 15000},
	}

	for _, tt := range tests {
		if got := thresholds.ServiceLimitFor(tt.trainType); got != tt.expected {
			t.Errorf("ServiceLimitFor(%q) = %d, want %d", tt.trainType, got, tt.expected)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("missing file should fall back to defaults, got error: %v", err)
	}
	if cfg.Thresholds.DefaultLimit != 15000 {
		t.Errorf("DefaultLimit = %d, want default 15000", cfg.Thresholds.DefaultLimit)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	yaml := `
database:
  type: postgres
  postgres:
    host: db.example.com
    port: 5433
thresholds:
  days_warn: 30
  days_max: 40
  service_limits:
    Ласточка: 16000
feed:
  base_url: https://feed.example.com
  max_retries: 2
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Type != "postgres" || cfg.Database.Postgres.Host != "db.example.com" {
		t.Errorf("database config not applied: %+v", cfg.Database)
	}
	if cfg.Thresholds.DaysWarn != 30 || cfg.Thresholds.DaysMax != 40 {
		t.Errorf("threshold overrides not applied: %d/%d", cfg.Thresholds.DaysWarn, cfg.Thresholds.DaysMax)
	}
	if cfg.Thresholds.ServiceLimitFor("Ласточка") != 16000 {
		t.Errorf("service limit override not applied")
	}
	if cfg.Feed.MaxRetries != 2 {
		t.Errorf("feed override not applied: %+v", cfg.Feed)
	}
	// untouched sections keep their defaults
	if cfg.Thresholds.MileageWarn != 23000 {
		t.Errorf("MileageWarn = %d, want default 23000", cfg.Thresholds.MileageWarn)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("thresholds: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

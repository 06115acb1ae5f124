package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.SessionStore != StorePostgres {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, StorePostgres)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Errorf("SessionTTL = %v, want 10m", cfg.SessionTTL)
	}
	if cfg.SessionInactivityWindow != 10*time.Minute {
		t.Errorf("SessionInactivityWindow = %v, want 10m", cfg.SessionInactivityWindow)
	}
	if cfg.SessionRefreshWindow != 5*time.Minute {
		t.Errorf("SessionRefreshWindow = %v, want 5m", cfg.SessionRefreshWindow)
	}
	if cfg.SessionRetryMax != 2 {
		t.Errorf("SessionRetryMax = %d, want 2", cfg.SessionRetryMax)
	}
	if cfg.SessionRetryBaseDelay != 500*time.Millisecond {
		t.Errorf("SessionRetryBaseDelay = %v, want 500ms", cfg.SessionRetryBaseDelay)
	}
	if cfg.SessionCleanupInterval != 5*time.Minute {
		t.Errorf("SessionCleanupInterval = %v, want 5m", cfg.SessionCleanupInterval)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.TelemetryKafkaTopic != "portal-session-events" {
		t.Errorf("TelemetryKafkaTopic = %q, want default", cfg.TelemetryKafkaTopic)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SESSION_INACTIVITY_WINDOW", "15m")
	t.Setenv("SESSION_REFRESH_WINDOW", "2m")
	t.Setenv("SESSION_STORE", "Memory")
	t.Setenv("BCRYPT_COST", "14")
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pw")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.SessionTTL)
	}
	if cfg.SessionInactivityWindow != 15*time.Minute {
		t.Errorf("SessionInactivityWindow = %v, want 15m", cfg.SessionInactivityWindow)
	}
	if cfg.SessionRefreshWindow != 2*time.Minute {
		t.Errorf("SessionRefreshWindow = %v, want 2m", cfg.SessionRefreshWindow)
	}
	if cfg.SessionStore != StoreMemory {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, StoreMemory)
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.SeedAdminPassword != "admin-pw" || cfg.SeedGuestPassword != "" {
		t.Errorf("seed passwords = %q, %q", cfg.SeedAdminPassword, cfg.SeedGuestPassword)
	}
}

func TestLoad_WindowRelations(t *testing.T) {
	testCases := []struct {
		name       string
		ttl        string
		inactivity string
		refresh    string
		wantErr    bool
	}{
		{"reference values", "10m", "10m", "5m", false},
		{"refresh equals ttl", "10m", "10m", "10m", true},
		{"refresh longer than ttl", "5m", "10m", "6m", true},
		{"refresh longer than inactivity", "30m", "4m", "5m", true},
		{"refresh equals inactivity", "30m", "5m", "5m", false},
		{"zero ttl", "0s", "10m", "5m", true},
		{"zero refresh", "10m", "10m", "0s", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv("SESSION_TTL", tc.ttl)
			t.Setenv("SESSION_INACTIVITY_WINDOW", tc.inactivity)
			t.Setenv("SESSION_REFRESH_WINDOW", tc.refresh)

			_, err := Load()
			if tc.wantErr && err == nil {
				t.Error("Load: expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Load: %v", err)
			}
		})
	}
}

func TestLoad_SessionStore(t *testing.T) {
	testCases := []struct {
		name    string
		store   string
		redis   string
		env     string
		wantErr bool
	}{
		{"postgres", "postgres", "", "", false},
		{"memory in development", "memory", "", "development", false},
		{"memory in production", "memory", "", "production", true},
		{"redis without url", "redis", "", "", true},
		{"redis with url", "redis", "redis://localhost:6379/0", "", false},
		{"unknown", "mongo", "", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv("SESSION_STORE", tc.store)
			t.Setenv("REDIS_URL", tc.redis)
			t.Setenv("APP_ENV", tc.env)

			_, err := Load()
			if tc.wantErr && err == nil {
				t.Error("Load: expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Load: %v", err)
			}
		})
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"zero falls back to default", "0", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Error("Load: expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	testCases := []struct {
		name    string
		brokers string
		want    []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple with spaces", " a:9092, b:9092 ,,c:9092", []string{"a:9092", "b:9092", "c:9092"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{TelemetryKafkaBrokers: tc.brokers}
			got := cfg.TelemetryKafkaBrokersList()
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}

	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}

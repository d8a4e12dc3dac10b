package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearKeyEnv blanks every variable Load reads a key from so the host env cannot leak in.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WEATHER_API_KEY", "KMA_API_KEY", "SESSION_SECRET", "ENV_NAME", "CACHE_BACKEND", "PORT", "MODEL_PATH", "DATABASE_PATH"} {
		t.Setenv(k, "")
	}
}

func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	chdirForTest(t, dir)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error when no WEATHER_API_KEY and no secrets file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "WEATHER_API_KEY") {
		t.Errorf("Load() error = %v, want message containing WEATHER_API_KEY", err)
	}
}

func TestLoad_SucceedsWithSecretsFile(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\nsession_secret: secret-from-secrets-file\n")
	chdirForTest(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-secrets-file" {
		t.Errorf("WeatherAPIKey = %q, want key-from-secrets-file", cfg.WeatherAPIKey)
	}
	if cfg.SessionSecret != "secret-from-secrets-file" {
		t.Errorf("SessionSecret = %q, want secret-from-secrets-file", cfg.SessionSecret)
	}
}

func TestLoad_KMAKeyEnvVar(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("KMA_API_KEY", "kma-key-1234567890")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: from-file\n")
	chdirForTest(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "kma-key-1234567890" {
		t.Errorf("WeatherAPIKey = %q, want env value over secrets file", cfg.WeatherAPIKey)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearKeyEnv(t)
	os.Unsetenv("SESSION_SECRET")
	os.Unsetenv("KMA_API_KEY")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("KMA_API_KEY=dotenv-key-123456\nSESSION_SECRET=dotenv-secret\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	chdirForTest(t, dir)
	t.Cleanup(func() {
		os.Unsetenv("KMA_API_KEY")
		os.Unsetenv("SESSION_SECRET")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "dotenv-key-123456" {
		t.Errorf("WeatherAPIKey = %q, want value from .env", cfg.WeatherAPIKey)
	}
	if cfg.SessionSecret != "dotenv-secret" {
		t.Errorf("SessionSecret = %q, want value from .env", cfg.SessionSecret)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	t.Setenv("ENV_NAME", "nonexistent")
	chdirForTest(t, t.TempDir())

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	dir := t.TempDir()
	writeEnvFile(t, dir, "server: {}\n")
	chdirForTest(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"ServerPort", cfg.ServerPort, "5001"},
		{"WeatherAPIURL", cfg.WeatherAPIURL, defaultWeatherAPIURL},
		{"WeatherAPITimeout", cfg.WeatherAPITimeout, 10 * time.Second},
		{"WeatherUTCOffsetHours", cfg.WeatherUTCOffsetHours, 9},
		{"RequestTimeout", cfg.RequestTimeout, 15 * time.Second},
		{"CacheTTL", cfg.CacheTTL, 10 * time.Minute},
		{"CacheBackend", cfg.CacheBackend, "in_memory"},
		{"RedisAddr", cfg.RedisAddr, "localhost:6379"},
		{"ModelPath", cfg.ModelPath, "flood_predictor_model.json"},
		{"RiverDefaultLevel", cfg.RiverDefaultLevel, 2.0},
		{"DatabasePath", cfg.DatabasePath, filepath.Join("instance", "flood_data.db")},
		{"UploadsDir", cfg.UploadsDir, "uploads"},
		{"UploadsMaxSize", cfg.UploadsMaxSize, int64(32 << 20)},
		{"SessionCookieName", cfg.SessionCookieName, "session"},
		{"SessionTTL", cfg.SessionTTL, 24 * time.Hour},
		{"CircuitBreakerEnabled", cfg.CircuitBreakerEnabled, false},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EmptyDurationFallsBackToDefault(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
weather_api:
  timeout: "2s"
request:
  timeout: ""
cache:
  ttl: ""
session:
  ttl: ""
`)
	chdirForTest(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.RequestTimeout)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
weather_api:
  timeout: "not-a-duration"
cache:
  ttl: "soon"
`)
	chdirForTest(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPITimeout != 10*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want 10s", cfg.WeatherAPITimeout)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
}

func TestLoad_RequestTimeoutRaisedAboveWeatherTimeout(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
weather_api:
  timeout: "10s"
request:
  timeout: "5s"
`)
	chdirForTest(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 11*time.Second {
		t.Errorf("RequestTimeout = %v, want 11s", cfg.RequestTimeout)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"zero weather timeout", "weather_api:\n  timeout: \"0s\"\n", "weather_api.timeout"},
		{"unknown cache backend", "cache:\n  backend: \"etcd\"\n", "cache.backend"},
		{"negative river level", "river:\n  default_level: -1.5\n", "river.default_level"},
		{"utc offset out of range", "weather_api:\n  utc_offset_hours: 20\n", "utc_offset_hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeyEnv(t)
			t.Setenv("WEATHER_API_KEY", "test-key")
			dir := t.TempDir()
			writeEnvFile(t, dir, tt.yaml)
			chdirForTest(t, dir)

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_CacheBackendEnvOverride(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	t.Setenv("CACHE_BACKEND", " Redis ")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	chdirForTest(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "redis" {
		t.Errorf("CacheBackend = %q, want redis", cfg.CacheBackend)
	}
}

func TestLoad_InvalidSecretsYAML(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: [unclosed\n")
	chdirForTest(t, dir)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse secrets file") {
		t.Errorf("Load() error = %v, want parse secrets file", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	dir := t.TempDir()
	writeEnvFile(t, dir, "server:\n  port: [8080\n")
	chdirForTest(t, dir)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want parse config file", err)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	full := minimalEnvYAML + `
model:
  path: "models/forest.json"
river:
  default_level: 0
database:
  path: "/tmp/flood.db"
uploads:
  dir: "/tmp/media"
  max_bytes: 1024
session:
  cookie_name: "flood_session"
  ttl: "1h"
  secure: true
lifecycle:
  overload_window: "30s"
  overload_threshold_pct: 90
  degraded_window: "2m"
  degraded_error_pct: 10
`
	dir := t.TempDir()
	writeEnvFile(t, dir, full)
	chdirForTest(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.CacheBackend != "memcached" || cfg.MemcachedAddrs != "cache-1:11211" || cfg.MemcachedMaxIdleConns != 4 {
		t.Errorf("memcached settings = %q %q %d", cfg.CacheBackend, cfg.MemcachedAddrs, cfg.MemcachedMaxIdleConns)
	}
	if !cfg.CircuitBreakerEnabled || cfg.CircuitBreakerFailureThreshold != 3 || cfg.CircuitBreakerTimeout != 15*time.Second {
		t.Errorf("circuit breaker = %v %d %v", cfg.CircuitBreakerEnabled, cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerTimeout)
	}
	if cfg.CircuitBreakerSuccessThreshold != 1 {
		t.Errorf("CircuitBreakerSuccessThreshold = %d, want default 1", cfg.CircuitBreakerSuccessThreshold)
	}
	if cfg.ModelPath != "models/forest.json" {
		t.Errorf("ModelPath = %q", cfg.ModelPath)
	}
	if cfg.RiverDefaultLevel != 0 {
		t.Errorf("RiverDefaultLevel = %v, want explicit 0", cfg.RiverDefaultLevel)
	}
	if cfg.DatabasePath != "/tmp/flood.db" || cfg.UploadsDir != "/tmp/media" || cfg.UploadsMaxSize != 1024 {
		t.Errorf("storage = %q %q %d", cfg.DatabasePath, cfg.UploadsDir, cfg.UploadsMaxSize)
	}
	if cfg.SessionCookieName != "flood_session" || cfg.SessionTTL != time.Hour || !cfg.SessionSecure {
		t.Errorf("session = %q %v %v", cfg.SessionCookieName, cfg.SessionTTL, cfg.SessionSecure)
	}
	if cfg.OverloadWindow != 30*time.Second || cfg.OverloadThresholdPct != 90 {
		t.Errorf("overload = %v %d", cfg.OverloadWindow, cfg.OverloadThresholdPct)
	}
	if cfg.DegradedWindow != 2*time.Minute || cfg.DegradedErrorPct != 10 {
		t.Errorf("degraded = %v %d", cfg.DegradedWindow, cfg.DegradedErrorPct)
	}
}

func TestLoad_ProjectDevConfig(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	chdirForTest(t, findProjectRoot(t))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIURL == "" || cfg.ServerPort == "" {
		t.Errorf("Load() did not populate config from config/dev.yaml")
	}
}

const minimalEnvYAML = `
server:
  port: "8080"
weather_api:
  url: "https://api.example.com"
  timeout: "2s"
request:
  timeout: "5s"
cache:
  backend: "memcached"
  ttl: "5m"
  memcached:
    addrs: "cache-1:11211"
    max_idle_conns: 4
reliability:
  rate_limit_rps: 5
  rate_limit_burst: 10
  circuit_breaker:
    enabled: true
    failure_threshold: 3
    timeout: "15s"
shutdown:
  timeout: "10s"
`

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	secretsDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(secretsDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(secretsDir, "secrets.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write secrets file: %v", err)
	}
}

// TestCoverageGaps_IntentionallyUntested documents paths we reviewed but chose not to test.
func TestCoverageGaps_IntentionallyUntested(t *testing.T) {
	t.Run("loadSecrets_read_error", func(t *testing.T) {
		t.Skip("read-error path (non-IsNotExist) requires simulated ReadFile failure; not worth the portability cost")
	})
	t.Run("Load_getwd_error", func(t *testing.T) {
		t.Skip("os.Getwd failure needs a deleted working directory; platform specific")
	})
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}

// chdirForTest changes the working directory for the duration of the test
// and restores it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%q): %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore Chdir(%q): %v", prev, err)
		}
	})
}

//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/client"
)

// IntegrationTestConfig holds configuration for tests against the live KMA API.
type IntegrationTestConfig struct {
	APIKey string
	APIURL string
}

// GetIntegrationConfig reads KMA_API_KEY (or WEATHER_API_KEY) and skips when neither is set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("KMA_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("WEATHER_API_KEY")
	}
	if apiKey == "" {
		t.Skip("KMA_API_KEY not set, skipping integration test")
	}
	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultAPIURL
	}
	return IntegrationTestConfig{APIKey: apiKey, APIURL: apiURL}
}

// SetupIntegrationClient creates a live KMA client on the real clock.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.KMAClient {
	t.Helper()
	c, err := client.NewKMAClient(cfg.APIKey, cfg.APIURL, 10*time.Second, clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("NewKMAClient() error = %v", err)
	}
	return c
}

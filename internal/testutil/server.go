// Shared test setup for the API and app packages.

package testutil

import (
	"testing"

	"github.com/vrsandeep/seo-batch/internal/api"
	"github.com/vrsandeep/seo-batch/internal/config"
	"github.com/vrsandeep/seo-batch/internal/core"
	"go.uber.org/zap"
)

// TestConfig returns a configuration pointing at backendURL with no delay
// between batch items.
func TestConfig(backendURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Backend.URL = backendURL
	cfg.Batch.GenerationMode = "auto"
	cfg.History.RetentionDays = 30
	return cfg
}

// SetupTestApp builds a core.App over an in-memory database with a running
// hub. The hub is stopped when the test ends.
func SetupTestApp(t *testing.T, backendURL string) *core.App {
	t.Helper()
	app := core.NewWithConfig(TestConfig(backendURL), SetupTestDB(t), zap.NewNop())
	app.Version = "test"
	go app.WsHub().Run()
	t.Cleanup(app.WsHub().Stop)
	return app
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T, backendURL string) (*api.Server, *core.App) {
	t.Helper()
	app := SetupTestApp(t, backendURL)
	return api.NewServer(app), app
}

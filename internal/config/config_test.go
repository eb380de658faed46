package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SIS_API_URL", "http://localhost:9999/api/v1")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Monitor.ImportInterval)
	assert.Equal(t, time.Minute, cfg.Monitor.EventInterval)
	assert.Equal(t, time.Second, cfg.Monitor.ProgressInterval)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.StatusInterval)
	assert.Equal(t, 8*time.Hour, cfg.Monitor.TermInterval)
	assert.Equal(t, 48*time.Hour, cfg.Monitor.BackfillWindow)
	assert.NotEmpty(t, cfg.Monitor.EventTypes)
	assert.False(t, cfg.Debug)
}

func TestLoadFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
debug: true
server:
  address: ":9000"
api:
  base_url: "https://provision.example.edu/api/v1"
  timeout: 5s
monitor:
  import_interval: 15s
  event_types: [enrollment, instructor, group, person]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "https://provision.example.edu/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Monitor.ImportInterval)
	assert.Equal(t, []string{"enrollment", "instructor", "group", "person"}, cfg.Monitor.EventTypes)
	// unspecified values still get defaults
	assert.Equal(t, time.Minute, cfg.Monitor.EventInterval)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`api:
  base_url: "http://from-file/api/v1"
`), 0o600))

	t.Setenv("SIS_API_URL", "http://from-env/api/v1")
	t.Setenv("MONITOR_PORT", "9001")
	t.Setenv("MONITOR_EVENT_TYPES", "group, person")
	t.Setenv("MONITOR_IMPORT_INTERVAL", "45s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env/api/v1", cfg.API.BaseURL)
	assert.Equal(t, ":9001", cfg.Server.Address)
	assert.Equal(t, []string{"group", "person"}, cfg.Monitor.EventTypes)
	assert.Equal(t, 45*time.Second, cfg.Monitor.ImportInterval)
}

func TestDebugFromEnv(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"1", true},
		{"yes", true},
		{"YES", true},
		{"false", false},
		{"0", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SIS_API_URL", "http://localhost/api/v1")
			t.Setenv("APP_DEBUG", tt.value)

			cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Debug)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			API: config.APIConfig{BaseURL: "http://localhost/api/v1"},
			Monitor: config.MonitorConfig{
				ProgressInterval: time.Second,
				EventTypes:       []string{"enrollment"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"valid", func(c *config.Config) {}, false},
		{"missing base url", func(c *config.Config) { c.API.BaseURL = "" }, true},
		{"bad scheme", func(c *config.Config) { c.API.BaseURL = "ftp://host" }, true},
		{"sub-second progress poll", func(c *config.Config) { c.Monitor.ProgressInterval = 500 * time.Millisecond }, true},
		{"empty event type", func(c *config.Config) { c.Monitor.EventTypes = []string{""} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

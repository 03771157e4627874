package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_New_Valid(t *testing.T) {
	cfg, err := New(
		"http://localhost:8080",
		"/tmp/state.db",
		10*time.Second,
		true,
		"/tmp/shortctl.prom",
	)

	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "http://localhost:8080", cfg.API.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/tmp/state.db", cfg.Storage.Path)
	assert.True(t, cfg.Logging.Verbose)
	assert.Equal(t, "/tmp/shortctl.prom", cfg.Metrics.File)
}

func TestConfig_Validate_EmptyServerURL(t *testing.T) {
	_, err := New("", "/tmp/state.db", time.Second, false, "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server URL cannot be empty")
}

func TestConfig_Validate_RelativeServerURL(t *testing.T) {
	testCases := []string{"localhost:8080", "/api", "ftp://example.com", "http://"}

	for _, serverURL := range testCases {
		t.Run(serverURL, func(t *testing.T) {
			_, err := New(serverURL, "/tmp/state.db", time.Second, false, "")
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "absolute http(s) URL")
		})
	}
}

func TestConfig_Validate_EmptyStatePath(t *testing.T) {
	_, err := New("http://localhost:8080", "", time.Second, false, "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "state path cannot be empty")
}

func TestConfig_Validate_InvalidTimeout(t *testing.T) {
	testCases := []struct {
		name    string
		timeout time.Duration
	}{
		{"zero", 0},
		{"negative", -5 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("http://localhost:8080", "/tmp/state.db", tc.timeout, false, "")
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "timeout must be positive")
		})
	}
}

func TestConfig_FromEnv(t *testing.T) {
	t.Run("flags only", func(t *testing.T) {
		cfg, err := FromEnv("http://localhost:8080", "/tmp/state.db", time.Second, false, "")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.API.ServerURL)
	})

	t.Run("environment overrides flags", func(t *testing.T) {
		t.Setenv("SHORTCTL_SERVER_URL", "https://short.example.com")
		t.Setenv("SHORTCTL_TIMEOUT", "45s")
		t.Setenv("SHORTCTL_STATE_PATH", "/var/lib/shortctl/state.db")
		t.Setenv("SHORTCTL_VERBOSE", "true")
		t.Setenv("SHORTCTL_METRICS_FILE", "/tmp/m.prom")

		cfg, err := FromEnv("http://localhost:8080", "/tmp/state.db", time.Second, false, "")
		require.NoError(t, err)
		assert.Equal(t, "https://short.example.com", cfg.API.ServerURL)
		assert.Equal(t, 45*time.Second, cfg.API.Timeout)
		assert.Equal(t, "/var/lib/shortctl/state.db", cfg.Storage.Path)
		assert.True(t, cfg.Logging.Verbose)
		assert.Equal(t, "/tmp/m.prom", cfg.Metrics.File)
	})

	t.Run("bad environment value", func(t *testing.T) {
		t.Setenv("SHORTCTL_TIMEOUT", "soon")

		_, err := FromEnv("http://localhost:8080", "/tmp/state.db", time.Second, false, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse environment")
	})

	t.Run("environment is validated", func(t *testing.T) {
		t.Setenv("SHORTCTL_TIMEOUT", "0s")

		_, err := FromEnv("http://localhost:8080", "/tmp/state.db", time.Second, false, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "timeout must be positive")
	})
}

func TestDefaultStatePath(t *testing.T) {
	path := DefaultStatePath()
	assert.Equal(t, "state.db", filepath.Base(path))
	assert.Equal(t, "shortctl", filepath.Base(filepath.Dir(path)))
}

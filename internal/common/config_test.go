package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snow-extractor.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func clearEnv(t *testing.T) {
	for _, key := range []string{"SN_BASE_URL", "SN_SESSION_TOKEN", "SN_COOKIE", "DATABASE_PATH", "EXPORT_DIR", "LOG_LEVEL", "LOG_OUTPUT", "LOG_DIR", "SERVER_PORT"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[instance]
base_url = "https://acme.service-now.com/"
session_token = "tok"

[api]
timeout_seconds = 10
backoff_ms = 250
shapes = ["versioned", "table"]

[export]
directory = "/tmp/out"
summary = true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://acme.service-now.com", cfg.Instance.BaseURL)
	assert.Equal(t, "tok", cfg.Instance.SessionToken)
	assert.Equal(t, 10, cfg.API.TimeoutSeconds)
	assert.Equal(t, 250, cfg.API.BackoffMillis)
	assert.Equal(t, []string{ShapeVersioned, ShapeTable}, cfg.API.Shapes)
	assert.True(t, cfg.Export.Summary)
	assert.Equal(t, "servicenow", cfg.Export.Prefix)
	assert.Equal(t, 8085, cfg.Extractor.Port)
	assert.Equal(t, "all", cfg.API.DisplayValue)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SN_BASE_URL", "https://env.service-now.com")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_DIR", "/var/log/snow")

	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "https://env.service-now.com", cfg.Instance.BaseURL)
	assert.Equal(t, 9090, cfg.Extractor.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/log/snow", cfg.Logging.Directory)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"relative base url": "[instance]\nbase_url = \"acme.service-now.com\"",
		"unknown shape":     "[api]\nshapes = [\"graphql\"]",
		"display value":     "[api]\ndisplay_value = \"sometimes\"",
		"log level":         "[logging]\nlevel = \"chatty\"",
		"log format":        "[logging]\nformat = \"xml\"",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateClampsAPI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.TimeoutSeconds = 0
	cfg.API.MaxLimit = 5000
	cfg.API.BackoffMillis = -1

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.API.TimeoutSeconds)
	assert.Equal(t, 500, cfg.API.MaxLimit)
	assert.Equal(t, 0, cfg.API.BackoffMillis)
}

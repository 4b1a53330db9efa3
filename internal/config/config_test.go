// internal/config/config_test.go
package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steltix/newsgrab/internal/output"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 7*24*time.Hour, cfg.DeadTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromBytes(t *testing.T) {
	yaml := `
logging:
  level: debug
domain:
  min_delay: 2s
  max_delay: 4s
identity:
  rotation_base: 12
  proxies:
    - http://proxy.internal:8080
fetch:
  global_rate_limit: 5.0
browser:
  enabled: true
  headless: true
dead_ttl: 48h
server:
  address: ":9090"
output:
  format: json
  file: results.json
`
	cfg, err := LoadFromBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.Domain.MinDelay)
	assert.Equal(t, 12, cfg.Identity.RotationBase)
	assert.Equal(t, []string{"http://proxy.internal:8080"}, cfg.Identity.Proxies)
	assert.Equal(t, 5.0, cfg.Fetch.GlobalRateLimit)
	assert.True(t, cfg.Browser.Enabled)
	assert.Equal(t, 48*time.Hour, cfg.DeadTTL)
	assert.Equal(t, ":9090", cfg.Server.Address)
	require.NotNil(t, cfg.Output)
	assert.Equal(t, output.FormatJSON, cfg.Output.Format)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("logging: ["))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "logging:\n  level: verbose"},
		{"inverted delays", "domain:\n  min_delay: 5s\n  max_delay: 2s"},
		{"jitter out of range", "identity:\n  rotation_jitter: 1.5"},
		{"negative rate", "fetch:\n  global_rate_limit: -1"},
		{"output missing file", "output:\n  format: csv"},
		{"unknown output format", "output:\n  format: parquet\n  file: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("NEWSGRAB_TEST_ADDR", ":7070")

	cfg, err := LoadFromBytes([]byte("server:\n  address: \"${NEWSGRAB_TEST_ADDR}\""))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
}

func TestEnvExpansionLeavesUnsetIntact(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("logging:\n  level: \"info\"\nserver:\n  address: \"${NEWSGRAB_UNSET_VAR}\""))
	require.NoError(t, err)
	assert.Equal(t, "${NEWSGRAB_UNSET_VAR}", cfg.Server.Address)
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("logging:\n  level: warn"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

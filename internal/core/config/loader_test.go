package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RPC_URL", "https://rpc.sepolia.org/")

	path := writeConfig(t, `
rpc:
  endpoints:
    - ${TEST_RPC_URL}
    - https://ethereum-sepolia-rpc.publicnode.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://rpc.sepolia.org/",
		"https://ethereum-sepolia-rpc.publicnode.com",
	}, cfg.RPC.Endpoints)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EndpointsEnv, "")
	path := writeConfig(t, `
rpc:
  endpoints: [ "https://a.example" ]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.RPC.HealthCheckInterval)
	assert.Equal(t, 5*time.Second, cfg.RPC.ProbeTimeout)
	assert.Equal(t, 3, cfg.RPC.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.RPC.AttemptTimeout)
	assert.False(t, cfg.RPC.FailFastOnRPCError)
	assert.Zero(t, cfg.RPC.RateLimit)
	assert.Equal(t, 1, cfg.RPC.RateBurst)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
logging:
  level: debug
rpc:
  endpoints: [ "https://a.example", "https://b.example" ]
  health_check_interval: 1m
  probe_timeout: 2s
  max_retries: 5
  attempt_timeout: 750ms
  fail_fast_on_rpc_error: true
  rate_limit: 12.5
  rate_burst: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.RPC.HealthCheckInterval)
	assert.Equal(t, 2*time.Second, cfg.RPC.ProbeTimeout)
	assert.Equal(t, 5, cfg.RPC.MaxRetries)
	assert.Equal(t, 750*time.Millisecond, cfg.RPC.AttemptTimeout)
	assert.True(t, cfg.RPC.FailFastOnRPCError)
	assert.Equal(t, 12.5, cfg.RPC.RateLimit)
	assert.Equal(t, 4, cfg.RPC.RateBurst)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EndpointsFromEnv(t *testing.T) {
	t.Setenv(EndpointsEnv, " https://a.example , ,https://b.example")
	path := writeConfig(t, "server:\n  port: 8081\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.RPC.Endpoints)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "rpc: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	t.Setenv(EndpointsEnv, "")

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(c *AppConfig) { c.RPC.Endpoints = []string{"https://a.example"} }, ""},
		{"no endpoints", func(c *AppConfig) {}, "no rpc endpoints configured"},
		{"blank endpoint", func(c *AppConfig) { c.RPC.Endpoints = []string{"https://a.example", " "} }, "rpc endpoint 1 is empty"},
		{"negative retries", func(c *AppConfig) {
			c.RPC.Endpoints = []string{"https://a.example"}
			c.RPC.MaxRetries = -1
		}, "max_retries"},
		{"negative rate", func(c *AppConfig) {
			c.RPC.Endpoints = []string{"https://a.example"}
			c.RPC.RateLimit = -2
		}, "rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

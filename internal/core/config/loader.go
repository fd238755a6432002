package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// EndpointsEnv is consulted when the config file lists no endpoints.
const EndpointsEnv = "RPC_ENDPOINTS"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// FromEnv builds a configuration from defaults and the environment only.
func FromEnv() *AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if len(c.RPC.Endpoints) == 0 {
		c.RPC.Endpoints = SplitEndpoints(os.Getenv(EndpointsEnv))
	}
	if c.RPC.HealthCheckInterval == 0 {
		c.RPC.HealthCheckInterval = 30 * time.Second
	}
	if c.RPC.ProbeTimeout == 0 {
		c.RPC.ProbeTimeout = 5 * time.Second
	}
	if c.RPC.MaxRetries == 0 {
		c.RPC.MaxRetries = 3
	}
	if c.RPC.AttemptTimeout == 0 {
		c.RPC.AttemptTimeout = 10 * time.Second
	}
	if c.RPC.RateBurst == 0 {
		c.RPC.RateBurst = 1
	}
}

// Validate reports the first problem that would prevent the rotator from starting.
func (c *AppConfig) Validate() error {
	if len(c.RPC.Endpoints) == 0 {
		return fmt.Errorf("no rpc endpoints configured: set rpc.endpoints or %s", EndpointsEnv)
	}
	for i, e := range c.RPC.Endpoints {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("rpc endpoint %d is empty", i)
		}
	}
	if c.RPC.MaxRetries < 0 {
		return errors.New("rpc.max_retries must not be negative")
	}
	if c.RPC.HealthCheckInterval < 0 || c.RPC.ProbeTimeout < 0 || c.RPC.AttemptTimeout < 0 {
		return errors.New("rpc durations must not be negative")
	}
	if c.RPC.RateLimit < 0 {
		return errors.New("rpc.rate_limit must not be negative")
	}
	return nil
}

// SplitEndpoints parses a comma-separated endpoint list, dropping blanks.
func SplitEndpoints(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

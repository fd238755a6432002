package config

import (
	"time"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	RPC     RPCConfig     `yaml:"rpc"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// RPCConfig holds the endpoint pool and dispatcher settings.
type RPCConfig struct {
	Endpoints           []string      `yaml:"endpoints"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	MaxRetries          int           `yaml:"max_retries"`
	AttemptTimeout      time.Duration `yaml:"attempt_timeout"`
	FailFastOnRPCError  bool          `yaml:"fail_fast_on_rpc_error"`
	RateLimit           float64       `yaml:"rate_limit"` // attempts per second, 0 = unlimited
	RateBurst           int           `yaml:"rate_burst"`
}

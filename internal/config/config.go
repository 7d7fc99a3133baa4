package config

import (
	"github.com/vietddude/redial/report"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Target    TargetConfig    `yaml:"target"`
	Retry     RetryConfig     `yaml:"retry"`
	Reporting ReportingConfig `yaml:"reporting"`
	Logging   LoggingConfig   `yaml:"logging"`
	Diag      DiagConfig      `yaml:"diag"`
}

// TargetConfig holds the probed endpoint settings.
type TargetConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Method         string `yaml:"method"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RetryConfig holds the retry policy knobs.
type RetryConfig struct {
	MaxDelaySeconds       int  `yaml:"max_delay_seconds"` // 0 = no cap on wait hints
	MaxAttempts           int  `yaml:"max_attempts"`      // 0 = unlimited
	DisableTransportRetry bool `yaml:"disable_transport_retry"`
	DisableServerRetry    bool `yaml:"disable_server_retry"`
}

// HTTPSinkConfig holds the HTTP ingest sink settings.
type HTTPSinkConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ReportingConfig selects the failure sinks. All are optional; multiple
// sinks fan out.
type ReportingConfig struct {
	Log      bool                   `yaml:"log"`
	HTTP     *HTTPSinkConfig        `yaml:"http"`
	Redis    *report.RedisConfig    `yaml:"redis"`
	Postgres *report.PostgresConfig `yaml:"postgres"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DiagConfig holds the health/metrics server settings.
type DiagConfig struct {
	Port int `yaml:"port"`
}

package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/httpkit/resilience"
	"github.com/kbukum/httpkit/validation"
	"github.com/kbukum/httpkit/version"
)

const (
	defaultName    = "http"
	defaultTimeout = 30 * time.Second
	productName    = "httpkit"
)

// Config configures a Client and the Adapter it builds.
type Config struct {
	// Name identifies the client in logs, metrics and spans. Defaults to "http".
	Name string `yaml:"name" mapstructure:"name"`

	// BaseURL is the base URL prepended to all request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,http_url"`

	// Timeout bounds every exchange at the http.Client level. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// Headers are default headers. They form the Headers of the default
	// request config, so a per-call Headers map replaces them entirely.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// UserAgent is sent unless a request sets its own. Defaults to "httpkit/<version>".
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// TLS configures TLS settings for the HTTP transport.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`

	// HTTP2 configures the transport for HTTP/2 over TLS via golang.org/x/net/http2.
	HTTP2 bool `yaml:"http2" mapstructure:"http2"`

	// RateLimit builds a client-owned admission gate. Nil disables it.
	RateLimit *resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = version.UserAgent(productName)
	}
	if c.RateLimit != nil && c.RateLimit.Name == "" {
		c.RateLimit.Name = c.Name
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("httpclient: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.TLS != nil {
		if err := c.TLS.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRateLimitConfig returns a default rate limit config named after the client.
func DefaultRateLimitConfig(name string) *resilience.RateLimiterConfig {
	cfg := resilience.DefaultRateLimiterConfig(name)
	return &cfg
}

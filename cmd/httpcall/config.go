package main

import (
	"fmt"

	"github.com/kbukum/httpkit/config"
	"github.com/kbukum/httpkit/httpclient"
	"github.com/kbukum/httpkit/observability"
)

const (
	serviceName = "httpcall"
	envPrefix   = "HTTPCALL"
)

// Config is the httpcall configuration file layout.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Client  httpclient.Config          `yaml:"client" mapstructure:"client"`
	Tracing observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
}

func defaultConfig() Config {
	cfg := Config{
		Tracing: observability.DefaultTracerConfig(serviceName),
		Metrics: observability.DefaultMeterConfig(serviceName),
	}
	cfg.Name = serviceName
	cfg.Environment = config.EnvProduction
	// stdout carries the response.
	cfg.Logging.Output = "stderr"
	cfg.Client.Name = serviceName
	return cfg
}

// ApplyDefaults fills in defaults for every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Client.ApplyDefaults()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Name
	}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.Name
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("config.client: %w", err)
	}
	return nil
}

func loadConfig(configFile, envFile string) (*Config, error) {
	cfg := defaultConfig()

	opts := []config.LoaderOption{config.WithEnvPrefix(envPrefix)}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Package config loads program configuration with Viper.
//
// LoadConfig reads a YAML file (explicit or found in standard locations),
// loads an optional .env file into the environment, then lets environment
// variables override file values. Variables map to nested keys at every
// underscore boundary, so with WithEnvPrefix("HTTPCALL") the variable
// HTTPCALL_CLIENT_BASE_URL sets client.base_url.
//
// # Usage
//
//	var cfg MyConfig
//	if err := config.LoadConfig("httpcall", &cfg, config.WithEnvPrefix("HTTPCALL")); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config

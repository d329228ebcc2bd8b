// Package validation validates configuration structs with go-playground
// validator tags and reports failures by configuration key.
//
//	type Config struct {
//	    BaseURL string `mapstructure:"base_url" validate:"omitempty,http_url"`
//	}
//	if err := validation.Validate(cfg); err != nil {
//	    // err is a *validation.Error listing "base_url: must be a valid URL"
//	}
package validation

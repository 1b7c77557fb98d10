// Package config loads the command-line configuration from a file, the
// environment and flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables, as in ROUTEPROBE_LOG_LEVEL.
const EnvPrefix = "ROUTEPROBE"

// Config holds the complete command-line configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Verify VerifyConfig `mapstructure:"verify"`
	Routes RoutesConfig `mapstructure:"routes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// VerifyConfig holds the verify command configuration.
type VerifyConfig struct {
	// FailFast stops at the first failing case.
	FailFast bool `mapstructure:"fail_fast"`
	// Timeout bounds a whole verification run. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// RoutesConfig holds the routes command configuration.
type RoutesConfig struct {
	Format string `mapstructure:"format" validate:"oneof=table openapi"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("verify.fail_fast", false)
	v.SetDefault("verify.timeout", "0s")

	v.SetDefault("routes.format", "table")
}

// Load reads the configuration into v and decodes it. With an empty file,
// routeprobe.yaml is looked up in the working directory and may be absent.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("routeprobe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: invalid %s %q: must satisfy %s=%s", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

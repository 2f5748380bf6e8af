// Package config loads edgeshim settings. Precedence, lowest first: defaults,
// config file, EDGESHIM_* environment. The CLI applies explicitly set flags on
// top of the result.
package config

import (
	"fmt"
	"strings"
	"time"

	edgelog "github.com/holon-run/edgeshim/pkg/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. EDGESHIM_SOCKET_DIR.
const EnvPrefix = "EDGESHIM"

// Config is the resolved configuration.
type Config struct {
	SocketDir      string
	BinaryTypes    []string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
	FunctionName   string
	MiddlewareKey  string
}

// Load reads configPath (optional, YAML) and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("socket_dir", "/tmp")
	v.SetDefault("binary_types", []string{})
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("context.function_name", "edgeshim")
	v.SetDefault("middleware.key", "edge")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		SocketDir:      v.GetString("socket_dir"),
		BinaryTypes:    splitList(v.GetStringSlice("binary_types")),
		RequestTimeout: v.GetDuration("request_timeout"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
		FunctionName:   v.GetString("context.function_name"),
		MiddlewareKey:  v.GetString("middleware.key"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList also splits comma-separated items, the form list values take in
// environment variables.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks values that would make the shim unusable.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.SocketDir) == "" {
		return fmt.Errorf("socket_dir must not be empty")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if strings.TrimSpace(cfg.MiddlewareKey) == "" {
		return fmt.Errorf("middleware.key must not be empty")
	}
	return nil
}

// LogConfig converts the log settings for pkg/log.
func (c *Config) LogConfig() edgelog.Config {
	return edgelog.Config{
		Level:  edgelog.LogLevel(c.LogLevel),
		Format: c.LogFormat,
	}
}

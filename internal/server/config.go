package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the HTTP server configuration, read from the server section.
type Config struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	DevMode      bool          `mapstructure:"dev_mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// DefaultConfig returns the stock server settings.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		RateLimit:    100,
		RateBurst:    200,
	}
}

// ConfigFrom reads the server section of v over the defaults.
func ConfigFrom(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if v == nil {
		return cfg, nil
	}
	if err := v.UnmarshalKey("server", &cfg); err != nil {
		return cfg, fmt.Errorf("decode server config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address as host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

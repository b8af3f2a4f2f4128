package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/fleetpulse/internal/tier"
	"github.com/spf13/viper"
)

// LoadConfig reads configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_burst", 200)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/fleetpulse.db")

	v.SetDefault("plugins.liveness.enabled", true)
	v.SetDefault("plugins.liveness.sweep_interval", "30s")
	v.SetDefault("plugins.liveness.offline_alert_threshold", "2m")
	v.SetDefault("plugins.liveness.method", "icmp")
	v.SetDefault("plugins.liveness.privileged", false)
	v.SetDefault("plugins.liveness.single_probe_timeout", "2s")
	v.SetDefault("plugins.liveness.pool_threshold", 50)
	v.SetDefault("plugins.liveness.pool_workers", 0)
	v.SetDefault("plugins.liveness.chunk_size", 500)
	v.SetDefault("plugins.liveness.small_max", 100)
	v.SetDefault("plugins.liveness.medium_max", 1000)
	v.SetDefault("plugins.liveness.max_summary_outcomes", 1000)
	v.SetDefault("plugins.liveness.history_retention", "720h")
	v.SetDefault("plugins.liveness.maintenance_interval", "1h")
	v.SetDefault("plugins.liveness.run_on_start", true)
	v.SetDefault("plugins.liveness.continuous", true)
	v.SetDefault("plugins.liveness.sweep_rate", 0.2)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fleetpulse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fleetpulse")
	}

	// Environment variable support: FP_SERVER_PORT=9090
	v.SetEnvPrefix("FP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Per-tier probe settings fill in only what the file and env left unset.
	tier.ApplyDefaults(v, "plugins.liveness.tiers")

	return v, nil
}

package liveness

import (
	"fmt"
	"time"

	"github.com/HerbHall/fleetpulse/internal/tier"
)

// Probe methods.
const (
	MethodICMP    = "icmp"
	MethodCommand = "command"
)

// Config holds the liveness module configuration, read from plugins.liveness.
type Config struct {
	SweepInterval         time.Duration `mapstructure:"sweep_interval"`
	OfflineAlertThreshold time.Duration `mapstructure:"offline_alert_threshold"`
	Method                string        `mapstructure:"method"`
	Privileged            bool          `mapstructure:"privileged"`
	SingleProbeTimeout    time.Duration `mapstructure:"single_probe_timeout"`
	PoolThreshold         int           `mapstructure:"pool_threshold"`
	PoolWorkers           int           `mapstructure:"pool_workers"`
	ChunkSize             int           `mapstructure:"chunk_size"`
	SmallMax              int           `mapstructure:"small_max"`
	MediumMax             int           `mapstructure:"medium_max"`
	MaxSummaryOutcomes    int           `mapstructure:"max_summary_outcomes"`
	HistoryRetention      time.Duration `mapstructure:"history_retention"`
	MaintenanceInterval   time.Duration `mapstructure:"maintenance_interval"`
	RunOnStart            bool          `mapstructure:"run_on_start"`
	// Continuous disables the background sweep loop when false; sweeps then
	// run only on demand.
	Continuous    bool                        `mapstructure:"continuous"`
	SweepRate     float64                     `mapstructure:"sweep_rate"`
	Tiers         map[tier.Tier]tier.Settings `mapstructure:"tiers"`
	Notifications NotificationsConfig         `mapstructure:"notifications"`
}

// NotificationsConfig lists the alert delivery endpoints.
type NotificationsConfig struct {
	Webhooks     []WebhookConfig      `mapstructure:"webhooks"`
	Alertmanager []AlertmanagerConfig `mapstructure:"alertmanager"`
}

// WebhookConfig holds configuration for webhook notification delivery.
type WebhookConfig struct {
	URL     string            `mapstructure:"url" json:"url"`
	Secret  string            `mapstructure:"secret" json:"secret,omitempty"` //nolint:gosec // G101: config field name, not a credential
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty"`
}

// AlertmanagerConfig holds configuration for Alertmanager-compatible webhook delivery.
type AlertmanagerConfig struct {
	URL    string `mapstructure:"url" json:"url"`
	Secret string `mapstructure:"secret" json:"secret,omitempty"` //nolint:gosec // G101: config field name, not a credential
}

// DefaultConfig returns the stock liveness configuration.
func DefaultConfig() Config {
	tiers := make(map[tier.Tier]tier.Settings, len(tier.Defaults))
	for t, s := range tier.Defaults {
		tiers[t] = s
	}
	th := tier.DefaultThresholds()
	return Config{
		SweepInterval:         30 * time.Second,
		OfflineAlertThreshold: 2 * time.Minute,
		Method:                MethodICMP,
		SingleProbeTimeout:    2 * time.Second,
		PoolThreshold:         50,
		ChunkSize:             500,
		SmallMax:              th.SmallMax,
		MediumMax:             th.MediumMax,
		MaxSummaryOutcomes:    1000,
		HistoryRetention:      30 * 24 * time.Hour,
		MaintenanceInterval:   time.Hour,
		RunOnStart:            true,
		Continuous:            true,
		SweepRate:             0.2,
		Tiers:                 tiers,
	}
}

// Thresholds returns the tier boundaries from the config.
func (c Config) Thresholds() tier.Thresholds {
	return tier.Thresholds{SmallMax: c.SmallMax, MediumMax: c.MediumMax}
}

// TierSettings returns the effective settings for t, filling gaps from
// the stock defaults.
func (c Config) TierSettings(t tier.Tier) tier.Settings {
	return tier.Resolve(t, c.Tiers[t])
}

// Validate reports configuration values the engine cannot run with.
func (c Config) Validate() error {
	switch c.Method {
	case MethodICMP, MethodCommand:
	default:
		return fmt.Errorf("unknown probe method %q (want %q or %q)", c.Method, MethodICMP, MethodCommand)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	}
	if c.OfflineAlertThreshold < 0 {
		return fmt.Errorf("offline_alert_threshold must not be negative, got %s", c.OfflineAlertThreshold)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.SmallMax > 0 && c.MediumMax > 0 && c.MediumMax < c.SmallMax {
		return fmt.Errorf("medium_max (%d) must not be below small_max (%d)", c.MediumMax, c.SmallMax)
	}
	for _, wh := range c.Notifications.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("webhook notification requires a url")
		}
	}
	for _, am := range c.Notifications.Alertmanager {
		if am.URL == "" {
			return fmt.Errorf("alertmanager notification requires a url")
		}
	}
	return nil
}

// Package tier picks the sweep strategy for a fleet from its size and
// carries the per-tier probe defaults.
package tier

import (
	"time"

	"github.com/spf13/viper"
)

// Tier is the orchestration strategy chosen for a fleet size.
type Tier string

const (
	Small  Tier = "small"
	Medium Tier = "medium"
	Large  Tier = "large"
)

// All lists the tiers from smallest to largest.
var All = []Tier{Small, Medium, Large}

// Thresholds bound the small and medium tiers by active target count.
type Thresholds struct {
	SmallMax  int `mapstructure:"small_max"`
	MediumMax int `mapstructure:"medium_max"`
}

// DefaultThresholds returns the stock tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{SmallMax: 100, MediumMax: 1000}
}

// Select returns the tier for n active targets. Zero or negative
// thresholds fall back to the defaults.
func Select(n int, th Thresholds) Tier {
	def := DefaultThresholds()
	if th.SmallMax <= 0 {
		th.SmallMax = def.SmallMax
	}
	if th.MediumMax <= 0 {
		th.MediumMax = def.MediumMax
	}
	if th.MediumMax < th.SmallMax {
		th.MediumMax = th.SmallMax
	}

	switch {
	case n <= th.SmallMax:
		return Small
	case n <= th.MediumMax:
		return Medium
	default:
		return Large
	}
}

// Settings are the probe parameters used by one tier.
type Settings struct {
	Concurrency  int           `mapstructure:"concurrency"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// SubBatchSize is the persistence flush size; 0 flushes the whole batch at once.
	SubBatchSize int           `mapstructure:"sub_batch_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// Defaults holds the stock settings for each tier.
var Defaults = map[Tier]Settings{
	Small: {
		Concurrency:  20,
		ProbeTimeout: time.Second,
		SubBatchSize: 0,
		CacheTTL:     60 * time.Second,
	},
	Medium: {
		Concurrency:  50,
		ProbeTimeout: 800 * time.Millisecond,
		SubBatchSize: 100,
		CacheTTL:     120 * time.Second,
	},
	Large: {
		Concurrency:  100,
		ProbeTimeout: 500 * time.Millisecond,
		SubBatchSize: 200,
		CacheTTL:     300 * time.Second,
	},
}

// ApplyDefaults writes the stock tier settings into v under prefix
// (e.g. "plugins.liveness.tiers"). Keys already set by a config file or
// the environment are left alone.
func ApplyDefaults(v *viper.Viper, prefix string) {
	for _, t := range All {
		d := Defaults[t]
		base := prefix + "." + string(t) + "."
		setIfUnset(v, base+"concurrency", d.Concurrency)
		setIfUnset(v, base+"probe_timeout", d.ProbeTimeout)
		setIfUnset(v, base+"sub_batch_size", d.SubBatchSize)
		setIfUnset(v, base+"cache_ttl", d.CacheTTL)
	}
}

func setIfUnset(v *viper.Viper, key string, value any) {
	if !v.IsSet(key) {
		v.SetDefault(key, value)
	}
}

// Resolve fills zero fields in s from the stock defaults for t. A partial
// tier section in the config file decodes with zero values for the rest.
func Resolve(t Tier, s Settings) Settings {
	d, ok := Defaults[t]
	if !ok {
		d = Defaults[Small]
	}
	if s.Concurrency <= 0 {
		s.Concurrency = d.Concurrency
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = d.ProbeTimeout
	}
	if s.SubBatchSize <= 0 {
		s.SubBatchSize = d.SubBatchSize
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = d.CacheTTL
	}
	return s
}

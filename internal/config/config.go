// Package config provides a Viper-backed implementation of the plugin.Config
// interface plus the loader and logger used by the composition root.
package config

import (
	"strings"
	"time"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig is a view of a Viper instance rooted at a key prefix. Sub
// narrows the prefix rather than copying the subtree, so FP_* environment
// overrides such as FP_PLUGINS_LIVENESS_METHOD reach plugin sections.
type ViperConfig struct {
	v      *viper.Viper
	prefix string
}

// New creates a Config backed by the given Viper instance.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) key(k string) string {
	switch {
	case c.prefix == "":
		return k
	case k == "":
		return c.prefix
	default:
		return c.prefix + "." + k
	}
}

// Unmarshal decodes the view into target. Each leaf is resolved on its own,
// so defaults, the config file and the environment merge per key.
func (c *ViperConfig) Unmarshal(target any) error {
	if c.prefix == "" {
		return c.v.Unmarshal(target)
	}
	flat := viper.New()
	p := c.prefix + "."
	for _, k := range c.v.AllKeys() {
		if rel, ok := strings.CutPrefix(k, p); ok {
			flat.Set(rel, c.v.Get(k))
		}
	}
	return flat.Unmarshal(target)
}

func (c *ViperConfig) Get(key string) any {
	return c.v.Get(c.key(key))
}

func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(c.key(key))
}

func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(c.key(key))
}

func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(c.key(key))
}

func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(c.key(key))
}

func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(c.key(key))
}

// Sub returns the section under key. A missing section is an empty view.
func (c *ViperConfig) Sub(key string) plugin.Config {
	return &ViperConfig{v: c.v, prefix: strings.ToLower(c.key(key))}
}

// Package registry manages module lifecycle for FleetPulse: registration,
// dependency ordering, initialization, startup, and shutdown.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.PluginResolver = (*Registry)(nil)

type entry struct {
	plugin   plugin.Plugin
	info     plugin.PluginInfo
	disabled bool
	started  bool
}

// Registry owns every registered module and drives it through
// Init, Start, and Stop in dependency order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // dependency order, set by Validate
	logger  *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds a module. Must be called before Validate.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("plugin has empty name")
	}
	if _, exists := r.entries[info.Name]; exists {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}

	r.entries[info.Name] = &entry{plugin: p, info: info}
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
	)
	return nil
}

// Validate checks API versions and dependencies, disabling optional modules
// that cannot run, and computes the start order. A required module that
// cannot run fails validation.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.sortedNames() {
		e := r.entries[name]
		if err := checkAPIVersion(e.info); err != nil {
			if err := r.disable(e, err); err != nil {
				return err
			}
		}
	}

	// Repeat until no more modules drop out, so disabling cascades to dependents.
	for changed := true; changed; {
		changed = false
		for _, name := range r.sortedNames() {
			e := r.entries[name]
			if e.disabled {
				continue
			}
			for _, dep := range e.info.Dependencies {
				d, ok := r.entries[dep]
				var reason error
				switch {
				case !ok:
					reason = fmt.Errorf("plugin %q depends on %q which is not registered", name, dep)
				case d.disabled:
					reason = fmt.Errorf("plugin %q depends on %q which is disabled", name, dep)
				}
				if reason == nil {
					continue
				}
				if err := r.disable(e, reason); err != nil {
					return err
				}
				changed = true
				break
			}
		}
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order

	r.logger.Info("plugin dependency resolution complete",
		zap.Strings("start_order", r.order),
	)
	return nil
}

// InitAll initializes active modules in dependency order. Optional modules
// that fail Init or config validation are disabled.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		e := r.entries[name]
		if e.disabled {
			continue
		}
		r.logger.Info("initializing plugin", zap.String("name", name))
		if err := e.plugin.Init(ctx, depsFn(name)); err != nil {
			if err := r.disable(e, fmt.Errorf("plugin %q failed to initialize: %w", name, err)); err != nil {
				return err
			}
			continue
		}
		if v, ok := e.plugin.(plugin.Validator); ok {
			if err := v.ValidateConfig(); err != nil {
				if err := r.disable(e, fmt.Errorf("plugin %q config validation failed: %w", name, err)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// StartAll starts initialized modules in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		e := r.entries[name]
		if e.disabled {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := e.plugin.Start(ctx); err != nil {
			if err := r.disable(e, fmt.Errorf("plugin %q failed to start: %w", name, err)); err != nil {
				return err
			}
			continue
		}
		e.started = true
	}
	return nil
}

// StopAll stops started modules in reverse dependency order. Stop errors
// are logged; every module gets its turn.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range slices.Backward(r.order) {
		e := r.entries[name]
		if !e.started {
			continue
		}
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := e.plugin.Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
		e.started = false
	}
}

// Resolve returns an active module by name.
func (r *Registry) Resolve(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || e.disabled {
		return nil, false
	}
	return e.plugin, true
}

// ResolveByRole returns the active modules declaring role.
func (r *Registry) ResolveByRole(role string) []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []plugin.Plugin
	for _, name := range r.order {
		e := r.entries[name]
		if !e.disabled && slices.Contains(e.info.Roles, role) {
			out = append(out, e.plugin)
		}
	}
	return out
}

// All returns the active modules in dependency order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; !e.disabled {
			out = append(out, e.plugin)
		}
	}
	return out
}

// AllRoutes returns HTTP routes keyed by module name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		e := r.entries[name]
		if e.disabled {
			continue
		}
		if hp, ok := e.plugin.(plugin.HTTPProvider); ok {
			if rs := hp.Routes(); len(rs) > 0 {
				routes[name] = rs
			}
		}
	}
	return routes
}

// IsDisabled reports whether a module was disabled during validation,
// init, or start.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return ok && e.disabled
}

// disable marks e disabled, or returns reason when e is required.
func (r *Registry) disable(e *entry, reason error) error {
	if e.info.Required {
		return reason
	}
	r.logger.Warn("disabling optional plugin",
		zap.String("name", e.info.Name),
		zap.Error(reason),
	)
	e.disabled = true
	return nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func checkAPIVersion(info plugin.PluginInfo) error {
	if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
		return fmt.Errorf("plugin %q targets Plugin API v%d, supported range is v%d..v%d",
			info.Name, info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
	}
	return nil
}

// topologicalSort orders active modules so dependencies come first. Ties
// break alphabetically so the order is stable across runs.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, name := range r.sortedNames() {
		e := r.entries[name]
		if e.disabled {
			continue
		}
		inDegree[name] += 0
		for _, dep := range e.info.Dependencies {
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, d := range inDegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(inDegree))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
				slices.Sort(ready)
			}
		}
	}

	if len(order) != len(inDegree) {
		var cycled []string
		for name, d := range inDegree {
			if d > 0 {
				cycled = append(cycled, name)
			}
		}
		slices.Sort(cycled)
		return nil, fmt.Errorf("dependency cycle detected among plugins: %v", cycled)
	}
	return order, nil
}

// Package registry drives the linkpulse plugins through their lifecycle:
// registration, dependency ordering, Init, event wiring, Start and Stop.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/HerbHall/linkpulse/pkg/plugin"
	"go.uber.org/zap"
)

// Registry manages the lifecycle of all registered plugins.
//
// Plugin methods are never called with mu held: Init commonly resolves
// sibling plugins through the registry itself.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	infos    map[string]plugin.PluginInfo
	order    []string // dependency order after Validate
	disabled map[string]bool
	logger   *zap.Logger

	subMu         sync.Mutex
	unsubscribers []func()
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		infos:    make(map[string]plugin.PluginInfo),
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// Register adds a plugin. Must be called before Validate.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	name := info.Name
	if name == "" {
		return errors.New("plugin has empty name")
	}
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}

	r.plugins[name] = p
	r.infos[name] = info
	r.logger.Info("plugin registered",
		zap.String("name", name),
		zap.String("version", info.Version),
		zap.Int("api_version", info.APIVersion),
	)
	return nil
}

// Validate checks API versions and dependencies, disables optional plugins
// that cannot run, and computes the start order. Required plugins that
// cannot run make Validate fail.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.sortedNames() {
		if err := r.checkAPIVersion(name, r.infos[name].APIVersion); err != nil {
			if err := r.disableLocked(name, "incompatible plugin API version", err); err != nil {
				return err
			}
		}
	}

	// Repeat until stable so a disabled plugin takes its dependents with it.
	for changed := true; changed; {
		changed = false
		for _, name := range r.sortedNames() {
			if r.disabled[name] {
				continue
			}
			reason, dep := r.unmetDependency(name)
			if reason == "" {
				continue
			}
			err := fmt.Errorf("plugin %q depends on %q which is %s", name, dep, reason)
			if err := r.disableLocked(name, "dependency "+reason, err); err != nil {
				return err
			}
			changed = true
		}
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order

	r.logger.Info("plugin dependency resolution complete",
		zap.Strings("start_order", r.order),
		zap.Int("active", len(r.order)),
		zap.Int("disabled", len(r.disabled)),
	)
	return nil
}

// unmetDependency returns why name cannot run and which dependency is at
// fault, or an empty reason when every dependency is active.
func (r *Registry) unmetDependency(name string) (reason, dep string) {
	for _, d := range r.infos[name].Dependencies {
		if _, ok := r.plugins[d]; !ok {
			return "not registered", d
		}
		if r.disabled[d] {
			return "disabled", d
		}
	}
	return "", ""
}

// disableLocked marks an optional plugin disabled, or returns cause when the
// plugin is required. Callers hold mu.
func (r *Registry) disableLocked(name, why string, cause error) error {
	if r.infos[name].Required {
		return cause
	}
	r.logger.Warn("disabling plugin",
		zap.String("name", name),
		zap.String("reason", why),
		zap.Error(cause),
	)
	r.disabled[name] = true
	return nil
}

// disable is disableLocked for callers outside mu.
func (r *Registry) disable(name, why string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disableLocked(name, why, cause)
}

// activeOrder snapshots the active plugins in dependency order.
func (r *Registry) activeOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if !r.disabled[name] {
			names = append(names, name)
		}
	}
	return names
}

// InitAll initializes active plugins in dependency order, validates their
// config and subscribes their declared event handlers to deps.Bus.
// An optional plugin that fails is disabled along with anything that
// depends on it; a required one aborts startup.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	for _, name := range r.activeOrder() {
		r.mu.RLock()
		reason, dep := r.unmetDependency(name)
		p := r.plugins[name]
		r.mu.RUnlock()

		if reason != "" {
			err := fmt.Errorf("plugin %q depends on %q which is %s", name, dep, reason)
			if err := r.disable(name, "dependency failed to initialize", err); err != nil {
				return err
			}
			continue
		}

		r.logger.Info("initializing plugin", zap.String("name", name))
		deps := depsFn(name)
		if err := guard(name, "Init", func() error { return p.Init(ctx, deps) }); err != nil {
			if err := r.disable(name, "init failed", fmt.Errorf("plugin %q failed to initialize: %w", name, err)); err != nil {
				return err
			}
			continue
		}

		if v, ok := p.(plugin.Validator); ok {
			if err := guard(name, "ValidateConfig", v.ValidateConfig); err != nil {
				if err := r.disable(name, "invalid config", fmt.Errorf("plugin %q config validation failed: %w", name, err)); err != nil {
					return err
				}
				continue
			}
		}

		if es, ok := p.(plugin.EventSubscriber); ok && deps.Bus != nil {
			r.subscribe(name, es, deps.Bus)
		}
	}
	return nil
}

func (r *Registry) subscribe(name string, es plugin.EventSubscriber, bus plugin.Subscriber) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, sub := range es.Subscriptions() {
		r.unsubscribers = append(r.unsubscribers, bus.Subscribe(sub.Topic, sub.Handler))
		r.logger.Debug("event subscription wired",
			zap.String("plugin", name),
			zap.String("topic", sub.Topic),
		)
	}
}

// StartAll starts initialized plugins in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, name := range r.activeOrder() {
		r.mu.RLock()
		p := r.plugins[name]
		r.mu.RUnlock()

		r.logger.Info("starting plugin", zap.String("name", name))
		if err := guard(name, "Start", func() error { return p.Start(ctx) }); err != nil {
			if err := r.disable(name, "start failed", fmt.Errorf("plugin %q failed to start: %w", name, err)); err != nil {
				return err
			}
		}
	}
	return nil
}

// StopAll detaches event handlers, then stops active plugins in reverse
// dependency order. Errors and panics are logged; every plugin gets its
// Stop call. Safe to call more than once.
func (r *Registry) StopAll(ctx context.Context) {
	r.subMu.Lock()
	unsubs := r.unsubscribers
	r.unsubscribers = nil
	r.subMu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}

	names := r.activeOrder()
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		r.mu.RLock()
		p := r.plugins[name]
		r.mu.RUnlock()

		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := guard(name, "Stop", func() error { return p.Stop(ctx) }); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
	}
}

// HealthAll collects Health from every active plugin that reports it.
func (r *Registry) HealthAll(ctx context.Context) map[string]plugin.HealthStatus {
	result := make(map[string]plugin.HealthStatus)
	for _, name := range r.activeOrder() {
		r.mu.RLock()
		p := r.plugins[name]
		r.mu.RUnlock()

		hc, ok := p.(plugin.HealthChecker)
		if !ok {
			continue
		}
		var status plugin.HealthStatus
		err := guard(name, "Health", func() error {
			status = hc.Health(ctx)
			return nil
		})
		if err != nil {
			status = plugin.HealthStatus{Status: "unhealthy", Message: err.Error()}
		}
		result[name] = status
	}
	return result
}

// guard runs fn and converts a panic into an error.
func guard(name, method string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plugin %q panicked in %s: %v", name, method, rec)
		}
	}()
	return fn()
}

// Get returns an active plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok || r.disabled[name] {
		return nil, false
	}
	return p, true
}

// All returns the active plugins in dependency order.
func (r *Registry) All() []plugin.Plugin {
	names := r.activeOrder()
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]plugin.Plugin, 0, len(names))
	for _, name := range names {
		result = append(result, r.plugins[name])
	}
	return result
}

// AllRoutes returns the routes of every active HTTPProvider, keyed by plugin name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	routes := make(map[string][]plugin.Route)
	for _, p := range r.All() {
		if hp, ok := p.(plugin.HTTPProvider); ok {
			if pr := hp.Routes(); len(pr) > 0 {
				routes[p.Info().Name] = pr
			}
		}
	}
	return routes
}

// Resolve implements plugin.PluginResolver.
func (r *Registry) Resolve(name string) (plugin.Plugin, bool) {
	return r.Get(name)
}

// ResolveByRole returns the active plugins declaring role.
func (r *Registry) ResolveByRole(role string) []plugin.Plugin {
	var result []plugin.Plugin
	for _, p := range r.All() {
		if slices.Contains(p.Info().Roles, role) {
			result = append(result, p)
		}
	}
	return result
}

// IsDisabled reports whether a plugin has been disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

func (r *Registry) checkAPIVersion(name string, apiVersion int) error {
	if apiVersion < plugin.APIVersionMin {
		return fmt.Errorf("plugin %q targets plugin API v%d, this build requires v%d or newer",
			name, apiVersion, plugin.APIVersionMin)
	}
	if apiVersion > plugin.APIVersionCurrent {
		return fmt.Errorf("plugin %q targets plugin API v%d, this build supports up to v%d",
			name, apiVersion, plugin.APIVersionCurrent)
	}
	return nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// topologicalSort orders active plugins with Kahn's algorithm, breaking
// ties alphabetically so start order is stable across runs.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, name := range r.sortedNames() {
		if !r.disabled[name] {
			inDegree[name] = 0
		}
	}
	for name := range inDegree {
		for _, dep := range r.infos[name].Dependencies {
			if _, active := inDegree[dep]; active {
				inDegree[name]++
				dependents[dep] = append(dependents[dep], name)
			}
		}
	}

	var ready []string
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(inDegree))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(inDegree) {
		var cycled []string
		for name, degree := range inDegree {
			if degree > 0 {
				cycled = append(cycled, name)
			}
		}
		sort.Strings(cycled)
		return nil, fmt.Errorf("dependency cycle detected among plugins: %v", cycled)
	}
	return order, nil
}

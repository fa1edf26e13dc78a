// Package gate implements the promotion gate engine. Gates are pure
// checks over a generation and its evolutions; the engine evaluates
// every configured gate (no short-circuit) and only a fully passing
// report allows promotion.
package gate

import (
	"fmt"
	"sort"

	"github.com/EpykLab/gryt-ci/pkg/model"
)

// Context carries the state a gate inspects. Gates never mutate it.
type Context struct {
	Generation *model.Generation
	Evolutions []*model.Evolution
}

// Gate is a single promotion check.
type Gate interface {
	Name() string
	Check(ctx *Context) model.GateResult
}

// Factory builds a gate from the configured gate policy.
type Factory func(cfg GatesConfig) Gate

// Registry maps gate names to factories. The engine assembles every
// gate set through it, so new gates plug in by name without engine
// changes.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the builtin gates.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("all_changes_proven", func(GatesConfig) Gate { return &AllChangesProvenGate{} })
	r.Register("no_failed_evolutions", func(GatesConfig) Gate { return &NoFailedEvolutionsGate{} })
	r.Register("min_evolutions", func(cfg GatesConfig) Gate { return &MinEvolutionsGate{Min: cfg.MinEvolutions} })
	r.Register("hotfix", func(GatesConfig) Gate { return &HotfixGate{} })
	return r
}

// Register adds a gate factory under the given name, replacing any
// existing registration.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Get builds the named gate.
func (r *Registry) Get(name string, cfg GatesConfig) (Gate, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown gate: %s", name)
	}
	return factory(cfg), nil
}

// DefaultGateNames is the gate set applied to regular generations when
// the config does not name one.
func DefaultGateNames() []string {
	return []string{"all_changes_proven", "no_failed_evolutions", "min_evolutions"}
}

// HotfixGateNames is the relaxed set applied to hotfix generations.
func HotfixGateNames() []string {
	return []string{"hotfix"}
}

// Names returns the registered gate names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

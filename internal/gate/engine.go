package gate

import (
	"fmt"
	"time"

	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

// Snapshotter captures the store state before a promotion mutates it.
type Snapshotter interface {
	Create(label string) (*model.SnapshotInfo, error)
}

// Tagger records a release tag for a promoted version.
type Tagger interface {
	Tag(version, message string) error
}

// Appender is the audit sink the engine writes promotion records to.
type Appender interface {
	Append(eventType model.AuditEventType, subjectID, actor string, payload map[string]any) error
}

// Engine evaluates promotion gates and performs promotions.
type Engine struct {
	store     *store.Store
	audit     Appender
	snapshots Snapshotter
	tagger    Tagger
	registry  *Registry
	gates     GatesConfig
	actor     string
}

// GatesConfig selects the gate sets the engine applies. Enabled names
// the gates run against regular generations; empty means the default
// set.
type GatesConfig struct {
	MinEvolutions int
	Enabled       []string
}

// NewEngine creates a promotion engine. Snapshotter and Tagger may be
// nil, in which case the corresponding step is skipped.
func NewEngine(st *store.Store, ap Appender, snapshots Snapshotter, tagger Tagger, cfg config.GatesConfig, actor string) *Engine {
	return &Engine{
		store:     st,
		audit:     ap,
		snapshots: snapshots,
		tagger:    tagger,
		registry:  NewRegistry(),
		gates:     GatesConfig{MinEvolutions: cfg.MinEvolutions, Enabled: cfg.Enabled},
		actor:     actor,
	}
}

// Registry exposes the engine's gate registry so embedders can plug in
// custom gates before evaluating.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// GatesFor resolves the gate set applied to the given generation
// through the registry. Hotfix generations get the relaxed hotfix set;
// everything else gets the configured gate names, or the default set
// when the config names none.
func (e *Engine) GatesFor(g *model.Generation) ([]Gate, error) {
	names := HotfixGateNames()
	if !g.Hotfix {
		names = e.gates.Enabled
		if len(names) == 0 {
			names = DefaultGateNames()
		}
	}

	gates := make([]Gate, 0, len(names))
	for _, name := range names {
		gt, err := e.registry.Get(name, e.gates)
		if err != nil {
			return nil, err
		}
		gates = append(gates, gt)
	}
	return gates, nil
}

// Evaluate runs every gate against the generation and returns the full
// report. All gates run even after a failure; the report carries one
// result per gate.
func (e *Engine) Evaluate(version string) (*model.GateReport, error) {
	g, err := e.store.GetGeneration(version)
	if err != nil {
		return nil, err
	}
	evolutions, err := e.store.ListEvolutions(version)
	if err != nil {
		return nil, err
	}

	gates, err := e.GatesFor(g)
	if err != nil {
		return nil, err
	}

	ctx := &Context{Generation: g, Evolutions: evolutions}
	report := &model.GateReport{
		Version:     version,
		Passed:      true,
		EvaluatedAt: time.Now().UTC(),
	}
	for _, gt := range gates {
		result := gt.Check(ctx)
		report.Results = append(report.Results, result)
		if !result.Passed {
			report.Passed = false
		}
	}

	return report, nil
}

// Promote evaluates all gates and, if every one passes, transitions the
// generation to promoted. A failing report leaves the store completely
// untouched. The report is returned in both cases so callers can show
// per-gate outcomes.
func (e *Engine) Promote(version string) (*model.Generation, *model.GateReport, error) {
	g, err := e.store.GetGeneration(version)
	if err != nil {
		return nil, nil, err
	}
	if !g.Mutable() {
		return nil, nil, errclass.ErrImmutableGeneration.WithMessagef("generation %s is %s", version, g.Status)
	}

	report, err := e.Evaluate(version)
	if err != nil {
		return nil, nil, err
	}
	if !report.Passed {
		failed := report.Failed()
		names := make([]string, 0, len(failed))
		for _, res := range failed {
			names = append(names, res.Gate)
		}
		return nil, report, errclass.ErrGateFailure.WithMessagef("gates failed for %s: %v", version, names)
	}

	if e.snapshots != nil {
		if _, err := e.snapshots.Create(fmt.Sprintf("pre-promote-%s", version)); err != nil {
			return nil, report, fmt.Errorf("pre-promotion snapshot: %w", err)
		}
	}

	now := time.Now().UTC()
	g.Status = model.GenerationPromoted
	g.PromotedAt = &now
	g.PromotedBy = e.actor
	g.Sync.MarkDirty()
	if err := e.store.SaveGeneration(g); err != nil {
		return nil, report, err
	}

	payload := map[string]any{
		"version":     version,
		"gate_report": report,
	}

	// Tag failure is recorded but never unwinds the promotion.
	if e.tagger != nil {
		if err := e.tagger.Tag(version, fmt.Sprintf("release %s", version)); err != nil {
			payload["tag_failed"] = err.Error()
		}
	}

	eventType := model.EventGenerationPromoted
	if g.Hotfix {
		eventType = model.EventHotfixPromoted
	}
	e.audit.Append(eventType, version, e.actor, payload)

	return g, report, nil
}

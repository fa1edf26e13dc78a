// Package contract implements the contract model: the operations that
// create and amend generations, record evolutions, and apply proof
// outcomes. Every mutating operation appends an audit event and returns
// a SyncDecision so the caller decides when to involve the sync engine;
// there is no hidden event-driven control flow.
package contract

import (
	"time"

	"github.com/google/uuid"

	"github.com/EpykLab/gryt-ci/internal/audit"
	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
	"github.com/EpykLab/gryt-ci/pkg/nameutil"
	"github.com/EpykLab/gryt-ci/pkg/semver"
)

// SyncDecision tells the caller whether the mutation it just performed
// makes a sync with the remote authority due, and for which version.
type SyncDecision struct {
	Due     bool
	Version string
}

// Model exposes the contract operations over a record store.
type Model struct {
	store *store.Store
	audit *audit.FileAppender
	mode  config.ExecutionMode
	actor string
}

// NewModel creates a contract model. actor identifies the operator for
// attribution in records and audit events.
func NewModel(st *store.Store, ap *audit.FileAppender, mode config.ExecutionMode, actor string) *Model {
	return &Model{store: st, audit: ap, mode: mode, actor: actor}
}

// decide computes the sync decision for an ordinary mutation.
func (m *Model) decide(version string) SyncDecision {
	return SyncDecision{Due: m.mode == config.ModeCloud, Version: version}
}

// decideCompletion computes the sync decision for evolution completion,
// which hybrid mode also syncs.
func (m *Model) decideCompletion(version string) SyncDecision {
	due := m.mode == config.ModeCloud || m.mode == config.ModeHybrid
	return SyncDecision{Due: due, Version: version}
}

// CreateGeneration creates a new draft generation for version with the
// given declared changes. The version must not exist locally, nor be
// known as promoted anywhere: promoted versions are append-only history
// and can never be recreated. Remote knowledge arrives via pull, which
// materializes remote generations as local records, so the local check
// covers both.
func (m *Model) CreateGeneration(version, description string, changes []model.Change) (*model.Generation, SyncDecision, error) {
	v, err := semver.Parse(version)
	if err != nil {
		return nil, SyncDecision{}, errclass.ErrNameInvalid.WithMessage(err.Error())
	}
	version = v.String()

	normalized, err := normalizeChanges(changes)
	if err != nil {
		return nil, SyncDecision{}, err
	}

	g := &model.Generation{
		GenerationID: uuid.NewString(),
		Version:      version,
		Description:  description,
		Changes:      normalized,
		Status:       model.GenerationDraft,
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    m.actor,
		Sync:         model.SyncMeta{Status: model.SyncNotSynced},
	}

	if err := m.store.CreateGeneration(g); err != nil {
		return nil, SyncDecision{}, err
	}

	m.audit.Append(model.EventGenerationCreated, g.GenerationID, m.actor, map[string]any{
		"version":      g.Version,
		"change_count": len(g.Changes),
	})

	return g, m.decide(version), nil
}

// ReplaceChanges replaces the generation's whole change set. Permitted
// only while the generation is a draft. Replacement is delete-then-insert,
// not a merge: the change list always mirrors its authoritative source
// document. Proof state does not carry over.
func (m *Model) ReplaceChanges(version string, changes []model.Change) (*model.Generation, SyncDecision, error) {
	g, err := m.store.GetGeneration(semver.Normalize(version))
	if err != nil {
		return nil, SyncDecision{}, err
	}
	if !g.Mutable() {
		return nil, SyncDecision{}, errclass.ErrImmutableGeneration.WithMessagef(
			"generation %s is %s", g.Version, g.Status)
	}

	normalized, err := normalizeChanges(changes)
	if err != nil {
		return nil, SyncDecision{}, err
	}

	g.Changes = normalized
	g.Sync.MarkDirty()
	if err := m.store.SaveGeneration(g); err != nil {
		return nil, SyncDecision{}, err
	}

	m.audit.Append(model.EventChangesReplaced, g.GenerationID, m.actor, map[string]any{
		"version":      g.Version,
		"change_count": len(g.Changes),
	})

	return g, m.decide(g.Version), nil
}

func normalizeChanges(changes []model.Change) ([]model.Change, error) {
	seen := make(map[string]bool, len(changes))
	out := make([]model.Change, 0, len(changes))
	for _, c := range changes {
		if err := nameutil.ValidateChangeID(c.ID); err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, errclass.ErrNameInvalid.WithMessagef("duplicate change id %s", c.ID)
		}
		seen[c.ID] = true
		if !model.ValidChangeType(c.Type) {
			return nil, errclass.ErrNameInvalid.WithMessagef("change %s has invalid type %q", c.ID, c.Type)
		}
		c.Status = model.ChangeUnproven
		out = append(out, c)
	}
	return out, nil
}

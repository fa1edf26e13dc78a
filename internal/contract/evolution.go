package contract

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
	"github.com/EpykLab/gryt-ci/pkg/semver"
)

// RecordEvolution allocates the next RC tag for the generation and
// creates a running evolution claiming the given changes. The external
// pipeline runner reports the outcome later via CompleteEvolution.
func (m *Model) RecordEvolution(version string, changeIDs []string, owner string) (*model.Evolution, SyncDecision, error) {
	version = semver.Normalize(version)

	g, err := m.store.GetGeneration(version)
	if err != nil {
		return nil, SyncDecision{}, err
	}
	if !g.Mutable() {
		return nil, SyncDecision{}, errclass.ErrImmutableGeneration.WithMessagef(
			"generation %s is %s", g.Version, g.Status)
	}
	if len(changeIDs) == 0 {
		return nil, SyncDecision{}, errclass.ErrUnknownChange.WithMessage("no change ids given")
	}
	for _, id := range changeIDs {
		if _, ok := g.Change(id); !ok {
			return nil, SyncDecision{}, errclass.ErrUnknownChange.WithMessagef(
				"change %s is not part of generation %s", id, g.Version)
		}
	}

	seq, err := m.store.AllocateRC(version)
	if err != nil {
		return nil, SyncDecision{}, err
	}

	e := &model.Evolution{
		EvolutionID:  uuid.NewString(),
		GenerationID: g.GenerationID,
		Version:      version,
		Tag:          model.RCTag(version, seq),
		Seq:          seq,
		ChangeIDs:    changeIDs,
		Status:       model.EvolutionRunning,
		Owner:        owner,
		StartedAt:    time.Now().UTC(),
		Sync:         model.SyncMeta{Status: model.SyncNotSynced},
	}
	if err := m.store.SaveEvolution(e); err != nil {
		return nil, SyncDecision{}, err
	}

	m.audit.Append(model.EventEvolutionStarted, e.EvolutionID, owner, map[string]any{
		"version":    version,
		"tag":        e.Tag,
		"change_ids": changeIDs,
	})

	return e, m.decide(version), nil
}

// CompleteEvolution records the terminal outcome of a proof attempt.
// On pass, every referenced change is marked proven. Re-proving an
// already-proven change is a no-op, and a later failure never reverts
// a change to unproven: proof is monotonic per change. An unresolved
// failing evolution still blocks promotion through the gate engine.
func (m *Model) CompleteEvolution(tag string, status model.EvolutionStatus, details map[string]any) (*model.Evolution, SyncDecision, error) {
	if !status.Terminal() {
		return nil, SyncDecision{}, fmt.Errorf("evolution status must be %s or %s, got %s",
			model.EvolutionPass, model.EvolutionFail, status)
	}

	e, err := m.store.GetEvolution(tag)
	if err != nil {
		return nil, SyncDecision{}, err
	}
	if e.Status.Terminal() {
		return nil, SyncDecision{}, fmt.Errorf("evolution %s already completed as %s", tag, e.Status)
	}

	now := time.Now().UTC()
	e.Status = status
	e.CompletedAt = &now
	e.Details = details
	e.Sync.MarkDirty()
	if err := m.store.SaveEvolution(e); err != nil {
		return nil, SyncDecision{}, err
	}

	if status == model.EvolutionPass {
		g, err := m.store.GetGeneration(e.Version)
		if err != nil {
			return nil, SyncDecision{}, err
		}
		dirty := false
		for _, id := range e.ChangeIDs {
			c, ok := g.Change(id)
			if !ok || c.Status == model.ChangeProven {
				continue
			}
			c.Status = model.ChangeProven
			dirty = true
		}
		if dirty {
			g.Sync.MarkDirty()
			if err := m.store.SaveGeneration(g); err != nil {
				return nil, SyncDecision{}, err
			}
		}
	}

	m.audit.Append(model.EventEvolutionCompleted, e.EvolutionID, m.actor, map[string]any{
		"version": e.Version,
		"tag":     e.Tag,
		"status":  string(status),
	})

	return e, m.decideCompletion(e.Version), nil
}

// DeleteEvolution removes an evolution record. Its RC tag stays burned:
// the persisted counter never rewinds.
func (m *Model) DeleteEvolution(tag string) (SyncDecision, error) {
	e, err := m.store.GetEvolution(tag)
	if err != nil {
		return SyncDecision{}, err
	}
	if err := m.store.DeleteEvolution(tag); err != nil {
		return SyncDecision{}, err
	}

	m.audit.Append(model.EventEvolutionDeleted, e.EvolutionID, m.actor, map[string]any{
		"version": e.Version,
		"tag":     tag,
	})

	return m.decide(e.Version), nil
}

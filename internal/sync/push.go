package sync

import (
	"context"
	"errors"
	"time"

	"github.com/EpykLab/gryt-ci/internal/remote"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

// Push uploads local records that are not yet synced. version narrows
// the batch to one generation and its evolutions; empty pushes
// everything eligible. A record that fails or conflicts is marked and
// skipped, and the batch continues with the rest.
func (e *Engine) Push(ctx context.Context, version string) (*Report, error) {
	generations, err := e.eligibleGenerations(version)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, g := range generations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		e.pushGeneration(ctx, g, report)
	}

	evolutions, err := e.eligibleEvolutions(version)
	if err != nil {
		return report, err
	}
	for _, ev := range evolutions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		e.pushEvolution(ctx, ev, report)
	}

	e.audit.Append(model.EventSyncPush, version, e.actor, map[string]any{
		"created":   report.Created,
		"updated":   report.Updated,
		"conflicts": report.Conflicts,
		"errors":    report.Errors,
	})

	return report, nil
}

func (e *Engine) eligibleGenerations(version string) ([]*model.Generation, error) {
	if version != "" {
		g, err := e.store.GetGeneration(version)
		if err != nil {
			return nil, err
		}
		if g.Sync.Status == model.SyncSynced {
			return nil, nil
		}
		return []*model.Generation{g}, nil
	}

	all, err := e.store.ListGenerations()
	if err != nil {
		return nil, err
	}
	var out []*model.Generation
	for _, g := range all {
		if g.Sync.Status != model.SyncSynced {
			out = append(out, g)
		}
	}
	return out, nil
}

func (e *Engine) eligibleEvolutions(version string) ([]*model.Evolution, error) {
	var all []*model.Evolution
	var err error
	if version != "" {
		all, err = e.store.ListEvolutions(version)
	} else {
		all, err = e.store.ListAllEvolutions()
	}
	if err != nil {
		return nil, err
	}

	var out []*model.Evolution
	for _, ev := range all {
		if ev.Sync.Status != model.SyncSynced {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (e *Engine) pushGeneration(ctx context.Context, g *model.Generation, report *Report) {
	if g.Sync.Status == model.SyncConflict {
		report.add("generation", g.Version, OutcomeSkipped, "conflicted records are never pushed")
		return
	}

	// Persist the transient syncing state before the round trip so an
	// interrupted push is visible in the store instead of silently
	// reverting to not_synced.
	g.Sync.Status = model.SyncSyncing
	if err := e.store.SaveGeneration(g); err != nil {
		report.add("generation", g.Version, OutcomeErrored, err.Error())
		return
	}

	if g.Sync.RemoteID != "" {
		pushed, err := e.client.UpdateGeneration(ctx, remote.FromLocalGeneration(g))
		if err != nil {
			e.markGenerationFailed(g, report, err)
			return
		}
		e.markGenerationSynced(g, pushed.ID, report, OutcomeUpdated)
		return
	}

	// No remote identity: the version must be unclaimed on the
	// authority before we create it there.
	_, err := e.client.GetGenerationByVersion(ctx, g.Version)
	switch {
	case err == nil:
		g.Sync.Status = model.SyncFailed
		e.store.SaveGeneration(g)
		report.add("generation", g.Version, OutcomeConflict, "version already exists on remote with a different identity")
		return
	case !errors.Is(err, errclass.ErrRemoteNotFound):
		e.markGenerationFailed(g, report, err)
		return
	}

	pushed, err := e.client.CreateGeneration(ctx, remote.FromLocalGeneration(g))
	if err != nil {
		if errors.Is(err, errclass.ErrVersionConflict) {
			g.Sync.Status = model.SyncFailed
			e.store.SaveGeneration(g)
			report.add("generation", g.Version, OutcomeConflict, err.Error())
			return
		}
		e.markGenerationFailed(g, report, err)
		return
	}
	e.markGenerationSynced(g, pushed.ID, report, OutcomeCreated)
}

func (e *Engine) markGenerationSynced(g *model.Generation, remoteID string, report *Report, outcome ItemOutcome) {
	now := time.Now().UTC()
	g.Sync.RemoteID = remoteID
	g.Sync.Status = model.SyncSynced
	g.Sync.LastSyncedAt = &now
	if err := e.store.SaveGeneration(g); err != nil {
		report.add("generation", g.Version, OutcomeErrored, err.Error())
		return
	}
	report.add("generation", g.Version, outcome, "")
}

func (e *Engine) markGenerationFailed(g *model.Generation, report *Report, cause error) {
	g.Sync.Status = model.SyncFailed
	e.store.SaveGeneration(g)
	report.add("generation", g.Version, OutcomeErrored, cause.Error())
}

func (e *Engine) pushEvolution(ctx context.Context, ev *model.Evolution, report *Report) {
	if ev.Sync.Status == model.SyncConflict {
		report.add("evolution", ev.Tag, OutcomeSkipped, "conflicted records are never pushed")
		return
	}

	gen, err := e.store.GetGeneration(ev.Version)
	if err != nil || gen.Sync.RemoteID == "" {
		report.add("evolution", ev.Tag, OutcomeSkipped, "owning generation is not synced")
		return
	}

	ev.Sync.Status = model.SyncSyncing
	if err := e.store.SaveEvolution(ev); err != nil {
		report.add("evolution", ev.Tag, OutcomeErrored, err.Error())
		return
	}

	wire := remote.FromLocalEvolution(ev, gen.Sync.RemoteID)

	var pushed *remote.Evolution
	outcome := OutcomeUpdated
	if ev.Sync.RemoteID != "" {
		pushed, err = e.client.UpdateEvolution(ctx, wire)
	} else {
		outcome = OutcomeCreated
		pushed, err = e.client.CreateEvolution(ctx, wire)
	}
	if err != nil {
		if errors.Is(err, errclass.ErrVersionConflict) {
			ev.Sync.Status = model.SyncFailed
			e.store.SaveEvolution(ev)
			report.add("evolution", ev.Tag, OutcomeConflict, err.Error())
			return
		}
		ev.Sync.Status = model.SyncFailed
		e.store.SaveEvolution(ev)
		report.add("evolution", ev.Tag, OutcomeErrored, err.Error())
		return
	}

	now := time.Now().UTC()
	ev.Sync.RemoteID = pushed.ID
	ev.Sync.Status = model.SyncSynced
	ev.Sync.LastSyncedAt = &now
	if err := e.store.SaveEvolution(ev); err != nil {
		report.add("evolution", ev.Tag, OutcomeErrored, err.Error())
		return
	}
	report.add("evolution", ev.Tag, outcome, "")
}

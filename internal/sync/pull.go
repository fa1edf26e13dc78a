package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/EpykLab/gryt-ci/internal/remote"
	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

// Pull fetches the remote state and reconciles it into the local
// store. Remote records matched by remote ID overwrite their local
// counterpart; a local record holding the same version without the
// remote's identity is a conflict and is left untouched apart from its
// sync status. Local-only records are never deleted.
func (e *Engine) Pull(ctx context.Context) (*Report, error) {
	remoteGens, err := e.client.ListGenerations(ctx)
	if err != nil {
		return nil, err
	}
	remoteEvos, err := e.client.ListEvolutions(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, rg := range remoteGens {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		e.pullGeneration(rg, report)
	}
	for _, re := range remoteEvos {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		e.pullEvolution(re, report)
	}

	if err := e.store.SetMeta(store.MetaLastPullAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return report, err
	}

	e.audit.Append(model.EventSyncPull, "", e.actor, map[string]any{
		"created":   report.Created,
		"updated":   report.Updated,
		"conflicts": report.Conflicts,
	})

	return report, nil
}

func (e *Engine) pullGeneration(rg *remote.Generation, report *Report) {
	now := time.Now().UTC()

	local, err := e.store.GetGenerationByRemoteID(rg.ID)
	if err == nil {
		updated := rg.ToLocalGeneration(local.GenerationID, now)
		if err := e.store.SaveGeneration(updated); err != nil {
			report.add("generation", rg.Version, OutcomeErrored, err.Error())
			return
		}
		report.add("generation", rg.Version, OutcomeUpdated, "")
		return
	}

	existing, err := e.store.GetGeneration(rg.Version)
	if err == nil {
		// Same version, different identity: two histories claim one
		// version string. Never merged automatically.
		detail := "local record has no remote identity for this version"
		if existing.Sync.RemoteID != "" {
			detail = "local record is bound to a different remote identity for this version"
		}
		existing.Sync.Status = model.SyncConflict
		if err := e.store.SaveGeneration(existing); err != nil {
			report.add("generation", rg.Version, OutcomeErrored, err.Error())
			return
		}
		report.add("generation", rg.Version, OutcomeConflict, detail)
		return
	}
	if !errorIsUnknown(err) {
		report.add("generation", rg.Version, OutcomeErrored, err.Error())
		return
	}

	created := rg.ToLocalGeneration(uuid.NewString(), now)
	if err := e.store.CreateGeneration(created); err != nil {
		report.add("generation", rg.Version, OutcomeErrored, err.Error())
		return
	}
	report.add("generation", rg.Version, OutcomeCreated, "")
}

func (e *Engine) pullEvolution(re *remote.Evolution, report *Report) {
	now := time.Now().UTC()

	gen, err := e.store.GetGeneration(re.Version)
	if err != nil {
		// Its generation was conflicted or failed above; do not attach
		// remote evolutions to a disputed version.
		report.add("evolution", re.Tag, OutcomeSkipped, "no synced local generation for "+re.Version)
		return
	}

	local, err := e.store.GetEvolution(re.Tag)
	if err == nil {
		if local.Sync.RemoteID != "" && local.Sync.RemoteID != re.ID {
			report.add("evolution", re.Tag, OutcomeConflict, "tag bound to a different remote record")
			return
		}
		if local.Sync.RemoteID == "" {
			local.Sync.Status = model.SyncConflict
			if err := e.store.SaveEvolution(local); err != nil {
				report.add("evolution", re.Tag, OutcomeErrored, err.Error())
				return
			}
			report.add("evolution", re.Tag, OutcomeConflict, "local record has no remote identity for this tag")
			return
		}
		updated := re.ToLocalEvolution(local.EvolutionID, gen.GenerationID, now)
		if err := e.store.SaveEvolution(updated); err != nil {
			report.add("evolution", re.Tag, OutcomeErrored, err.Error())
			return
		}
		report.add("evolution", re.Tag, OutcomeUpdated, "")
		return
	}

	created := re.ToLocalEvolution(uuid.NewString(), gen.GenerationID, now)
	if err := e.store.SaveEvolution(created); err != nil {
		report.add("evolution", re.Tag, OutcomeErrored, err.Error())
		return
	}
	report.add("evolution", re.Tag, OutcomeCreated, "")
}

func errorIsUnknown(err error) bool {
	return errors.Is(err, errclass.ErrUnknownGeneration) || errors.Is(err, errclass.ErrUnknownEvolution)
}

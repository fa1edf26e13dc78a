package cli

import (
	"context"

	"github.com/EpykLab/gryt-ci/internal/contract"
	"github.com/EpykLab/gryt-ci/internal/sync"
	"github.com/EpykLab/gryt-ci/pkg/logging"
	"github.com/EpykLab/gryt-ci/pkg/semver"
)

func normalizeVersionArg(arg string) string {
	return semver.Normalize(arg)
}

// maybeAutoPush pushes the version a mutation touched when the
// execution mode scheduled a sync. A push failure is reported but never
// fails the local operation; the record stays dirty for the next push.
func maybeAutoPush(e *env, dec contract.SyncDecision) {
	if !dec.Due {
		return
	}
	if e.cfg.Remote.URL == "" {
		logging.Warn("sync due but no remote configured", map[string]any{"version": dec.Version})
		return
	}

	var report *sync.Report
	err := e.withStoreLock("auto push", func() error {
		var innerErr error
		report, innerErr = e.syncEngine().Push(context.Background(), dec.Version)
		return innerErr
	})
	if err != nil {
		fmtErr("warning: sync push failed: %v", err)
		return
	}
	if !report.Clean() {
		fmtErr("warning: sync push finished with %d conflicts, %d errors (see 'gryt sync status')",
			report.Conflicts, report.Errors)
	}
}

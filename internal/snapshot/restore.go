package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/fsutil"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

// RestoreResult describes a completed rollback.
type RestoreResult struct {
	Restored *model.SnapshotInfo `json:"restored"`
	Backup   *model.SnapshotInfo `json:"backup"`
}

// Restore replaces the entire data directory with the contents of the
// given snapshot. The live state is snapshotted first, so a rollback is
// itself reversible. The audit log lives outside the data directory
// and is never rolled back; the rollback event stays on record.
func (m *Manager) Restore(query string) (*RestoreResult, error) {
	target, err := m.Resolve(query)
	if err != nil {
		return nil, err
	}

	backup, err := m.Create(fmt.Sprintf("pre-rollback-%s", target.SnapshotID.ShortID()))
	if err != nil {
		return nil, err
	}

	if err := m.swapDataDir(target.SnapshotID); err != nil {
		return nil, err
	}

	m.audit.Append(model.EventStoreRolledBack, string(target.SnapshotID), m.actor, map[string]any{
		"label":     target.Label,
		"backup_id": string(backup.SnapshotID),
	})

	return &RestoreResult{Restored: target, Backup: backup}, nil
}

// swapDataDir stages the snapshot payload next to the live data dir,
// then swaps the two with renames so a crash mid-restore never leaves
// a half-written store.
func (m *Manager) swapDataDir(id model.SnapshotID) error {
	dataDir := m.store.DataDir()
	staging := dataDir + ".restore-tmp"
	displaced := dataDir + ".restore-old"

	os.RemoveAll(staging)
	os.RemoveAll(displaced)

	if _, err := fsutil.CopyTree(m.dataDir(id), staging); err != nil {
		os.RemoveAll(staging)
		return errclass.ErrRollbackIO.WithMessagef("stage snapshot %s: %v", id, err)
	}

	if err := os.Rename(dataDir, displaced); err != nil {
		os.RemoveAll(staging)
		return errclass.ErrRollbackIO.WithMessagef("displace data dir: %v", err)
	}
	if err := fsutil.RenameAndSync(staging, dataDir); err != nil {
		// Put the original back before reporting failure.
		os.Rename(displaced, dataDir)
		os.RemoveAll(staging)
		return errclass.ErrRollbackIO.WithMessagef("install snapshot %s: %v", id, err)
	}

	os.RemoveAll(displaced)
	if err := fsutil.FsyncDir(filepath.Dir(dataDir)); err != nil {
		return errclass.ErrRollbackIO.WithMessagef("sync store dir: %v", err)
	}
	return nil
}

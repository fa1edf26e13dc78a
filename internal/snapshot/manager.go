// Package snapshot implements whole-store, point-in-time copies of the
// record store. A snapshot captures the entire data directory at once;
// partial or per-record snapshots do not exist.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/EpykLab/gryt-ci/internal/audit"
	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/fsutil"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

const metaFileName = "meta.json"

// Manager owns the snapshots directory of one store.
type Manager struct {
	store *store.Store
	audit *audit.FileAppender
	actor string
}

// NewManager creates a snapshot manager for the given store.
func NewManager(st *store.Store, ap *audit.FileAppender, actor string) *Manager {
	return &Manager{store: st, audit: ap, actor: actor}
}

// Create copies the whole data directory into a new snapshot and
// returns its metadata.
func (m *Manager) Create(label string) (*model.SnapshotInfo, error) {
	id := model.NewSnapshotID()
	dir := m.snapshotDir(id)

	size, err := fsutil.CopyTree(m.store.DataDir(), filepath.Join(dir, "data"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, errclass.ErrSnapshotIO.WithMessagef("copy data dir: %v", err)
	}

	info := &model.SnapshotInfo{
		SnapshotID: id,
		Label:      label,
		CreatedAt:  time.Now().UTC(),
		SizeBytes:  size,
	}
	if err := m.writeMeta(dir, info); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	m.audit.Append(model.EventSnapshotCreated, string(id), m.actor, map[string]any{
		"label":      label,
		"size_bytes": size,
	})

	return info, nil
}

// List returns all snapshots, newest first. Directories without a
// readable meta file are skipped.
func (m *Manager) List() ([]*model.SnapshotInfo, error) {
	entries, err := os.ReadDir(m.store.SnapshotsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errclass.ErrSnapshotIO.WithMessagef("read snapshots dir: %v", err)
	}

	var infos []*model.SnapshotInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := m.readMeta(filepath.Join(m.store.SnapshotsDir(), entry.Name()))
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	return infos, nil
}

// Get returns the snapshot with the exact ID.
func (m *Manager) Get(id model.SnapshotID) (*model.SnapshotInfo, error) {
	info, err := m.readMeta(m.snapshotDir(id))
	if err != nil {
		return nil, errclass.ErrUnknownSnapshot.WithMessagef("snapshot %s", id)
	}
	return info, nil
}

// Resolve finds a single snapshot by ID prefix or exact label. An
// ambiguous query is an error.
func (m *Manager) Resolve(query string) (*model.SnapshotInfo, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}

	var matches []*model.SnapshotInfo
	for _, info := range infos {
		if strings.HasPrefix(string(info.SnapshotID), query) || info.Label == query {
			matches = append(matches, info)
		}
	}

	if len(matches) == 0 {
		return nil, errclass.ErrUnknownSnapshot.WithMessagef("no snapshot matching %q", query)
	}
	if len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, match := range matches {
			ids[i] = match.SnapshotID.ShortID()
		}
		return nil, fmt.Errorf("ambiguous query %q matches snapshots: %s", query, strings.Join(ids, ", "))
	}

	return matches[0], nil
}

// Delete removes a snapshot and its payload.
func (m *Manager) Delete(id model.SnapshotID) error {
	if _, err := m.Get(id); err != nil {
		return err
	}
	if err := os.RemoveAll(m.snapshotDir(id)); err != nil {
		return errclass.ErrSnapshotIO.WithMessagef("delete snapshot %s: %v", id, err)
	}
	return nil
}

// CleanupOld deletes the oldest snapshots beyond keep. Returns the
// number removed.
func (m *Manager) CleanupOld(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	infos, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	removed := 0
	for _, info := range infos[keep:] {
		if err := m.Delete(info.SnapshotID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) snapshotDir(id model.SnapshotID) string {
	return filepath.Join(m.store.SnapshotsDir(), string(id))
}

func (m *Manager) dataDir(id model.SnapshotID) string {
	return filepath.Join(m.snapshotDir(id), "data")
}

func (m *Manager) writeMeta(dir string, info *model.SnapshotInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return errclass.ErrSnapshotIO.WithMessagef("marshal meta: %v", err)
	}
	if err := fsutil.AtomicWrite(filepath.Join(dir, metaFileName), data, 0644); err != nil {
		return errclass.ErrSnapshotIO.WithMessagef("write meta: %v", err)
	}
	return nil
}

func (m *Manager) readMeta(dir string) (*model.SnapshotInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, err
	}
	var info model.SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

package snapshot

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/EpykLab/gryt-ci/pkg/jsonutil"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

// DiffState classifies one record's relation between the live store
// and a snapshot.
type DiffState string

const (
	DiffOnlyLive     DiffState = "only_live"     // created since the snapshot; a restore removes it
	DiffOnlySnapshot DiffState = "only_snapshot" // deleted since the snapshot; a restore brings it back
	DiffChanged      DiffState = "changed"       // present on both sides with different content
)

// DiffEntry is one record that differs between live and snapshot.
type DiffEntry struct {
	Kind  string    `json:"kind"` // generation or evolution
	Key   string    `json:"key"`  // version or tag
	State DiffState `json:"state"`
}

// KindCounts summarizes one record kind across both sides.
type KindCounts struct {
	Live     int `json:"live"`
	Snapshot int `json:"snapshot"`
	Delta    int `json:"delta"`
}

// DiffReport compares the live store against one snapshot. It is
// produced by reads only; neither side is mutated.
type DiffReport struct {
	Snapshot    *model.SnapshotInfo `json:"snapshot"`
	Generations KindCounts          `json:"generations"`
	Evolutions  KindCounts          `json:"evolutions"`
	Entries     []DiffEntry         `json:"entries"`
}

// Clean reports whether live state and snapshot are identical.
func (r *DiffReport) Clean() bool {
	return len(r.Entries) == 0
}

// Diff compares the live store against the snapshot matching query.
func (m *Manager) Diff(query string) (*DiffReport, error) {
	info, err := m.Resolve(query)
	if err != nil {
		return nil, err
	}
	snapData := m.dataDir(info.SnapshotID)

	liveGens, err := m.store.ListGenerations()
	if err != nil {
		return nil, err
	}
	liveEvos, err := m.store.ListAllEvolutions()
	if err != nil {
		return nil, err
	}
	snapGens, err := readSnapshotGenerations(snapData)
	if err != nil {
		return nil, err
	}
	snapEvos, err := readSnapshotEvolutions(snapData)
	if err != nil {
		return nil, err
	}

	report := &DiffReport{
		Snapshot:    info,
		Generations: KindCounts{Live: len(liveGens), Snapshot: len(snapGens), Delta: len(liveGens) - len(snapGens)},
		Evolutions:  KindCounts{Live: len(liveEvos), Snapshot: len(snapEvos), Delta: len(liveEvos) - len(snapEvos)},
	}

	liveByVersion := make(map[string]any, len(liveGens))
	for _, g := range liveGens {
		liveByVersion[g.Version] = g
	}
	snapByVersion := make(map[string]any, len(snapGens))
	for _, g := range snapGens {
		snapByVersion[g.Version] = g
	}
	diffRecords(report, "generation", liveByVersion, snapByVersion)

	liveByTag := make(map[string]any, len(liveEvos))
	for _, ev := range liveEvos {
		liveByTag[ev.Tag] = ev
	}
	snapByTag := make(map[string]any, len(snapEvos))
	for _, ev := range snapEvos {
		snapByTag[ev.Tag] = ev
	}
	diffRecords(report, "evolution", liveByTag, snapByTag)

	sort.Slice(report.Entries, func(i, j int) bool {
		if report.Entries[i].Kind != report.Entries[j].Kind {
			return report.Entries[i].Kind < report.Entries[j].Kind
		}
		return report.Entries[i].Key < report.Entries[j].Key
	})

	return report, nil
}

func diffRecords(report *DiffReport, kind string, live, snap map[string]any) {
	for key, liveRec := range live {
		snapRec, ok := snap[key]
		if !ok {
			report.Entries = append(report.Entries, DiffEntry{Kind: kind, Key: key, State: DiffOnlyLive})
			continue
		}
		if !canonicallyEqual(liveRec, snapRec) {
			report.Entries = append(report.Entries, DiffEntry{Kind: kind, Key: key, State: DiffChanged})
		}
	}
	for key := range snap {
		if _, ok := live[key]; !ok {
			report.Entries = append(report.Entries, DiffEntry{Kind: kind, Key: key, State: DiffOnlySnapshot})
		}
	}
}

// canonicallyEqual compares two records by their canonical JSON bytes,
// so map ordering and formatting never produce false differences.
func canonicallyEqual(a, b any) bool {
	ab, err := jsonutil.CanonicalMarshal(a)
	if err != nil {
		return false
	}
	bb, err := jsonutil.CanonicalMarshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// readSnapshotGenerations reads generation records straight from a
// snapshot's copied data directory.
func readSnapshotGenerations(dataDir string) ([]*model.Generation, error) {
	dir := filepath.Join(dataDir, "generations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*model.Generation
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var g model.Generation
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, nil
}

func readSnapshotEvolutions(dataDir string) ([]*model.Evolution, error) {
	root := filepath.Join(dataDir, "evolutions")
	versions, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*model.Evolution
	for _, versionDir := range versions {
		if !versionDir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, versionDir.Name()))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(root, versionDir.Name(), file.Name()))
			if err != nil {
				return nil, err
			}
			var ev model.Evolution
			if err := json.Unmarshal(data, &ev); err != nil {
				return nil, err
			}
			out = append(out, &ev)
		}
	}
	return out, nil
}

package sync

import (
	"context"
	"sort"

	"github.com/EpykLab/gryt-ci/pkg/model"
)

// StatusState classifies one record's relation to the remote authority.
type StatusState string

const (
	StateLocalOnly  StatusState = "local_only"
	StateRemoteOnly StatusState = "remote_only"
	StatePending    StatusState = "pending"
	StateSynced     StatusState = "synced"
	StateConflict   StatusState = "conflict"
	StateFailed     StatusState = "failed"
)

// StatusItem is one record's sync standing.
type StatusItem struct {
	Kind  string      `json:"kind"`
	Key   string      `json:"key"`
	State StatusState `json:"state"`
}

// StatusReport is the full local/remote comparison. It is produced by
// reads only; Status never mutates either side.
type StatusReport struct {
	Items []StatusItem `json:"items"`
}

// Counts returns the number of items per state.
func (r *StatusReport) Counts() map[StatusState]int {
	counts := make(map[StatusState]int)
	for _, item := range r.Items {
		counts[item.State]++
	}
	return counts
}

// Status compares local records against the remote authority.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	remoteGens, err := e.client.ListGenerations(ctx)
	if err != nil {
		return nil, err
	}
	remoteEvos, err := e.client.ListEvolutions(ctx)
	if err != nil {
		return nil, err
	}

	remoteVersions := make(map[string]bool, len(remoteGens))
	for _, rg := range remoteGens {
		remoteVersions[rg.Version] = true
	}
	remoteTags := make(map[string]bool, len(remoteEvos))
	for _, re := range remoteEvos {
		remoteTags[re.Tag] = true
	}

	report := &StatusReport{}

	locals, err := e.store.ListGenerations()
	if err != nil {
		return nil, err
	}
	localVersions := make(map[string]bool, len(locals))
	for _, g := range locals {
		localVersions[g.Version] = true
		report.Items = append(report.Items, StatusItem{
			Kind:  "generation",
			Key:   g.Version,
			State: recordState(g.Sync, remoteVersions[g.Version]),
		})
	}
	for _, rg := range remoteGens {
		if !localVersions[rg.Version] {
			report.Items = append(report.Items, StatusItem{Kind: "generation", Key: rg.Version, State: StateRemoteOnly})
		}
	}

	localEvos, err := e.store.ListAllEvolutions()
	if err != nil {
		return nil, err
	}
	localTags := make(map[string]bool, len(localEvos))
	for _, ev := range localEvos {
		localTags[ev.Tag] = true
		report.Items = append(report.Items, StatusItem{
			Kind:  "evolution",
			Key:   ev.Tag,
			State: recordState(ev.Sync, remoteTags[ev.Tag]),
		})
	}
	for _, re := range remoteEvos {
		if !localTags[re.Tag] {
			report.Items = append(report.Items, StatusItem{Kind: "evolution", Key: re.Tag, State: StateRemoteOnly})
		}
	}

	sort.Slice(report.Items, func(i, j int) bool {
		if report.Items[i].Kind != report.Items[j].Kind {
			return report.Items[i].Kind < report.Items[j].Kind
		}
		return report.Items[i].Key < report.Items[j].Key
	})

	return report, nil
}

func recordState(meta model.SyncMeta, onRemote bool) StatusState {
	switch meta.Status {
	case model.SyncConflict:
		return StateConflict
	case model.SyncFailed:
		return StateFailed
	case model.SyncSynced:
		return StateSynced
	case model.SyncSyncing:
		// An interrupted push left the record mid-flight; it stays
		// eligible for the next push.
		return StatePending
	}
	if meta.RemoteID != "" {
		return StatePending
	}
	if onRemote {
		// Same key on both sides without a shared identity.
		return StateConflict
	}
	return StateLocalOnly
}

package model

import "time"

// SyncMeta is the optional sync metadata carried by synchronizable records.
type SyncMeta struct {
	RemoteID     string     `json:"remote_id,omitempty"`
	Status       SyncStatus `json:"sync_status"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// MarkDirty records a local mutation: a synced record regresses to
// not_synced so the next push picks it up.
func (m *SyncMeta) MarkDirty() {
	if m.Status == SyncSynced || m.Status == "" {
		m.Status = SyncNotSynced
	}
}

// Change is a single declared unit of work inside a Generation.
// Its ID is unique within the owning Generation.
type Change struct {
	ID          string       `json:"id"`
	Type        ChangeType   `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      ChangeStatus `json:"status"`
}

// Generation is a declarative release contract for one version string.
// The version is immutable once created; a version promoted anywhere is
// append-only history and can never be recreated.
type Generation struct {
	GenerationID string           `json:"generation_id"`
	Version      string           `json:"version"`
	Description  string           `json:"description,omitempty"`
	Changes      []Change         `json:"changes"`
	Status       GenerationStatus `json:"status"`
	Hotfix       bool             `json:"hotfix,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	PromotedAt   *time.Time       `json:"promoted_at,omitempty"`
	CreatedBy    string           `json:"created_by,omitempty"`
	PromotedBy   string           `json:"promoted_by,omitempty"`

	// RCCounter is the persisted high-water mark for evolution tag
	// allocation. It only ever increases, so tags are never reused even
	// when evolutions are deleted.
	RCCounter int `json:"rc_counter"`

	Sync SyncMeta `json:"sync"`
}

// Change returns the change with the given ID, if present.
func (g *Generation) Change(id string) (*Change, bool) {
	for i := range g.Changes {
		if g.Changes[i].ID == id {
			return &g.Changes[i], true
		}
	}
	return nil, false
}

// AllProven reports whether every change in the generation is proven.
// A generation with no changes is not considered proven.
func (g *Generation) AllProven() bool {
	if len(g.Changes) == 0 {
		return false
	}
	for _, c := range g.Changes {
		if c.Status != ChangeProven {
			return false
		}
	}
	return true
}

// Mutable reports whether the generation still accepts contract mutations.
func (g *Generation) Mutable() bool {
	return g.Status == GenerationDraft
}

package model

import (
	"fmt"
	"time"
)

// Evolution is a tagged proof attempt against one or more changes of a
// generation. Its tag is derived deterministically from the generation
// version and a monotonically increasing sequence number.
type Evolution struct {
	EvolutionID  string          `json:"evolution_id"`
	GenerationID string          `json:"generation_id"`
	Version      string          `json:"version"`
	Tag          string          `json:"tag"`
	Seq          int             `json:"seq"`
	ChangeIDs    []string        `json:"change_ids"`
	Status       EvolutionStatus `json:"status"`
	Owner        string          `json:"owner,omitempty"`
	Details      map[string]any  `json:"details,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`

	Sync SyncMeta `json:"sync"`
}

// RCTag builds the release-candidate tag for the given version and
// sequence number, e.g. "v2.2.0-rc.3".
func RCTag(version string, seq int) string {
	return fmt.Sprintf("%s-rc.%d", version, seq)
}

// Proves reports whether the evolution references the given change.
func (e *Evolution) Proves(changeID string) bool {
	for _, id := range e.ChangeIDs {
		if id == changeID {
			return true
		}
	}
	return false
}

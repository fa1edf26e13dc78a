// Package remote talks to a remote authority: the server holding the
// shared, authoritative copy of generations and evolutions. In cloud
// and hybrid modes the sync engine reconciles the local store against
// it over this client.
package remote

import (
	"context"
	"time"

	"github.com/EpykLab/gryt-ci/pkg/model"
)

// Generation is the wire representation of a generation on the remote
// authority. The remote assigns the ID; version uniqueness is enforced
// server-side.
type Generation struct {
	ID          string                 `json:"id,omitempty"`
	Version     string                 `json:"version"`
	Description string                 `json:"description,omitempty"`
	Changes     []model.Change         `json:"changes"`
	Status      model.GenerationStatus `json:"status"`
	Hotfix      bool                   `json:"hotfix,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	PromotedAt  *time.Time             `json:"promoted_at,omitempty"`
	CreatedBy   string                 `json:"created_by,omitempty"`
	PromotedBy  string                 `json:"promoted_by,omitempty"`
	RCCounter   int                    `json:"rc_counter"`
	UpdatedAt   time.Time              `json:"updated_at,omitempty"`
}

// Evolution is the wire representation of an evolution record.
type Evolution struct {
	ID           string                `json:"id,omitempty"`
	GenerationID string                `json:"generation_id,omitempty"`
	Version      string                `json:"version"`
	Tag          string                `json:"tag"`
	Seq          int                   `json:"seq"`
	ChangeIDs    []string              `json:"change_ids"`
	Status       model.EvolutionStatus `json:"status"`
	Owner        string                `json:"owner,omitempty"`
	Details      map[string]any        `json:"details,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// Client is the operations the sync engine needs from a remote
// authority.
type Client interface {
	ListGenerations(ctx context.Context) ([]*Generation, error)
	GetGenerationByVersion(ctx context.Context, version string) (*Generation, error)
	CreateGeneration(ctx context.Context, g *Generation) (*Generation, error)
	UpdateGeneration(ctx context.Context, g *Generation) (*Generation, error)

	ListEvolutions(ctx context.Context) ([]*Evolution, error)
	CreateEvolution(ctx context.Context, e *Evolution) (*Evolution, error)
	UpdateEvolution(ctx context.Context, e *Evolution) (*Evolution, error)
}

// FromLocalGeneration builds the wire form of a local generation.
func FromLocalGeneration(g *model.Generation) *Generation {
	return &Generation{
		ID:          g.Sync.RemoteID,
		Version:     g.Version,
		Description: g.Description,
		Changes:     g.Changes,
		Status:      g.Status,
		Hotfix:      g.Hotfix,
		CreatedAt:   g.CreatedAt,
		PromotedAt:  g.PromotedAt,
		CreatedBy:   g.CreatedBy,
		PromotedBy:  g.PromotedBy,
		RCCounter:   g.RCCounter,
	}
}

// ToLocalGeneration materializes a remote generation as a local record
// marked synced against the remote ID.
func (rg *Generation) ToLocalGeneration(generationID string, syncedAt time.Time) *model.Generation {
	return &model.Generation{
		GenerationID: generationID,
		Version:      rg.Version,
		Description:  rg.Description,
		Changes:      rg.Changes,
		Status:       rg.Status,
		Hotfix:       rg.Hotfix,
		CreatedAt:    rg.CreatedAt,
		PromotedAt:   rg.PromotedAt,
		CreatedBy:    rg.CreatedBy,
		PromotedBy:   rg.PromotedBy,
		RCCounter:    rg.RCCounter,
		Sync: model.SyncMeta{
			RemoteID:     rg.ID,
			Status:       model.SyncSynced,
			LastSyncedAt: &syncedAt,
		},
	}
}

// FromLocalEvolution builds the wire form of a local evolution.
func FromLocalEvolution(e *model.Evolution, generationRemoteID string) *Evolution {
	return &Evolution{
		ID:           e.Sync.RemoteID,
		GenerationID: generationRemoteID,
		Version:      e.Version,
		Tag:          e.Tag,
		Seq:          e.Seq,
		ChangeIDs:    e.ChangeIDs,
		Status:       e.Status,
		Owner:        e.Owner,
		Details:      e.Details,
		StartedAt:    e.StartedAt,
		CompletedAt:  e.CompletedAt,
	}
}

// ToLocalEvolution materializes a remote evolution as a local record
// belonging to the given local generation.
func (re *Evolution) ToLocalEvolution(evolutionID, localGenerationID string, syncedAt time.Time) *model.Evolution {
	return &model.Evolution{
		EvolutionID:  evolutionID,
		GenerationID: localGenerationID,
		Version:      re.Version,
		Tag:          re.Tag,
		Seq:          re.Seq,
		ChangeIDs:    re.ChangeIDs,
		Status:       re.Status,
		Owner:        re.Owner,
		Details:      re.Details,
		StartedAt:    re.StartedAt,
		CompletedAt:  re.CompletedAt,
		Sync: model.SyncMeta{
			RemoteID:     re.ID,
			Status:       model.SyncSynced,
			LastSyncedAt: &syncedAt,
		},
	}
}

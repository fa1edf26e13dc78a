// Package hotfix implements the emergency-fix workflow: a one-change
// fix generation on the next free patch version of a promoted release,
// promoted under the relaxed hotfix gate set.
package hotfix

import (
	"time"

	"github.com/EpykLab/gryt-ci/internal/contract"
	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
	"github.com/EpykLab/gryt-ci/pkg/semver"
)

// ChangeID is the fixed change identifier of every hotfix generation.
const ChangeID = "hotfix"

// Manager drives hotfix creation over the contract model.
type Manager struct {
	store    *store.Store
	contract *contract.Model
}

// NewManager creates a hotfix manager.
func NewManager(st *store.Store, cm *contract.Model) *Manager {
	return &Manager{store: st, contract: cm}
}

// NextVersion computes the patch version a hotfix of base would claim,
// skipping every version already known locally.
func (m *Manager) NextVersion(base string) (string, error) {
	baseVersion, err := semver.Parse(base)
	if err != nil {
		return "", errclass.ErrNameInvalid.WithMessage(err.Error())
	}

	all, err := m.store.ListGenerations()
	if err != nil {
		return "", err
	}
	existing := make([]semver.Version, 0, len(all))
	for _, g := range all {
		v, err := semver.Parse(g.Version)
		if err != nil {
			continue
		}
		existing = append(existing, v)
	}

	return semver.NextPatch(baseVersion, existing).String(), nil
}

// Create starts a hotfix for the given promoted base version: a new
// draft generation on the next free patch version carrying a single
// fix change. The base must exist and be promoted; hotfixing a draft
// is just normal development.
func (m *Manager) Create(base, title, description string) (*model.Generation, contract.SyncDecision, error) {
	baseGen, err := m.store.GetGeneration(semver.Normalize(base))
	if err != nil {
		return nil, contract.SyncDecision{}, err
	}
	if baseGen.Status != model.GenerationPromoted {
		return nil, contract.SyncDecision{}, errclass.ErrImmutableGeneration.WithMessagef(
			"hotfix base %s is %s, want promoted", baseGen.Version, baseGen.Status)
	}

	version, err := m.NextVersion(baseGen.Version)
	if err != nil {
		return nil, contract.SyncDecision{}, err
	}

	change := model.Change{
		ID:    ChangeID,
		Type:  model.ChangeFix,
		Title: title,
	}
	g, decision, err := m.contract.CreateGeneration(version, description, []model.Change{change})
	if err != nil {
		return nil, contract.SyncDecision{}, err
	}

	g.Hotfix = true
	if err := m.store.SaveGeneration(g); err != nil {
		return nil, contract.SyncDecision{}, err
	}

	return g, decision, nil
}

// List returns all hotfix generations, newest first.
func (m *Manager) List() ([]*model.Generation, error) {
	all, err := m.store.ListGenerations()
	if err != nil {
		return nil, err
	}
	var out []*model.Generation
	for _, g := range all {
		if g.Hotfix {
			out = append(out, g)
		}
	}
	return out, nil
}

// Stats summarizes hotfix activity.
type Stats struct {
	Total    int            `json:"total"`
	Promoted int            `json:"promoted"`
	Drafts   int            `json:"drafts"`
	ByLine   map[string]int `json:"by_line"` // major.minor -> count
	Latest   *time.Time     `json:"latest,omitempty"`
}

// ComputeStats aggregates hotfix counts per release line.
func (m *Manager) ComputeStats() (*Stats, error) {
	hotfixes, err := m.List()
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByLine: make(map[string]int)}
	for _, g := range hotfixes {
		stats.Total++
		switch g.Status {
		case model.GenerationPromoted:
			stats.Promoted++
		case model.GenerationDraft:
			stats.Drafts++
		}
		if v, err := semver.Parse(g.Version); err == nil {
			line := semver.Version{Major: v.Major, Minor: v.Minor}.String()
			stats.ByLine[line]++
		}
		created := g.CreatedAt
		if stats.Latest == nil || created.After(*stats.Latest) {
			stats.Latest = &created
		}
	}

	return stats, nil
}

package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Init(t.TempDir())
	require.NoError(t, err)
	return s
}

func testGeneration(version string) *model.Generation {
	return &model.Generation{
		GenerationID: "gen-" + version,
		Version:      version,
		Description:  "test generation",
		Changes: []model.Change{
			{ID: "FEAT-1", Type: model.ChangeAdd, Title: "a feature", Status: model.ChangeUnproven},
		},
		Status:    model.GenerationDraft,
		CreatedAt: time.Now().UTC(),
		Sync:      model.SyncMeta{Status: model.SyncNotSynced},
	}
}

func TestCreateGeneration_Duplicate(t *testing.T) {
	s := setupStore(t)

	require.NoError(t, s.CreateGeneration(testGeneration("v1.0.0")))

	err := s.CreateGeneration(testGeneration("v1.0.0"))
	assert.ErrorIs(t, err, errclass.ErrDuplicateVersion)
}

func TestGetGeneration_Unknown(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetGeneration("v9.9.9")
	assert.ErrorIs(t, err, errclass.ErrUnknownGeneration)
}

func TestListGenerations_NewestFirst(t *testing.T) {
	s := setupStore(t)

	older := testGeneration("v1.0.0")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testGeneration("v1.1.0")

	require.NoError(t, s.CreateGeneration(older))
	require.NoError(t, s.CreateGeneration(newer))

	gens, err := s.ListGenerations()
	require.NoError(t, err)
	require.Len(t, gens, 2)
	assert.Equal(t, "v1.1.0", gens[0].Version)
	assert.Equal(t, "v1.0.0", gens[1].Version)
}

func TestAllocateRC_MonotonicAcrossDelete(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.CreateGeneration(testGeneration("v1.0.0")))

	seq1, err := s.AllocateRC("v1.0.0")
	require.NoError(t, err)
	seq2, err := s.AllocateRC("v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 1, seq1)
	assert.Equal(t, 2, seq2)

	// Persist an evolution for seq2, delete it, and verify the counter
	// does not rewind.
	evo := &model.Evolution{
		EvolutionID: "evo-2",
		Version:     "v1.0.0",
		Tag:         model.RCTag("v1.0.0", seq2),
		Seq:         seq2,
		ChangeIDs:   []string{"FEAT-1"},
		Status:      model.EvolutionRunning,
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.SaveEvolution(evo))
	require.NoError(t, s.DeleteEvolution(evo.Tag))

	seq3, err := s.AllocateRC("v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 3, seq3)
}

func TestEvolutionRoundTrip(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.CreateGeneration(testGeneration("v1.0.0")))

	evo := &model.Evolution{
		EvolutionID: "evo-1",
		Version:     "v1.0.0",
		Tag:         "v1.0.0-rc.1",
		Seq:         1,
		ChangeIDs:   []string{"FEAT-1"},
		Status:      model.EvolutionRunning,
		Owner:       "dev@example.com",
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.SaveEvolution(evo))

	got, err := s.GetEvolution("v1.0.0-rc.1")
	require.NoError(t, err)
	assert.Equal(t, evo.EvolutionID, got.EvolutionID)
	assert.Equal(t, []string{"FEAT-1"}, got.ChangeIDs)

	evos, err := s.ListEvolutions("v1.0.0")
	require.NoError(t, err)
	require.Len(t, evos, 1)

	_, err = s.GetEvolution("v1.0.0-rc.99")
	assert.ErrorIs(t, err, errclass.ErrUnknownEvolution)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	_, err := store.Init(root)
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	s, err := store.Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())

	_, err = store.Discover(t.TempDir())
	assert.Error(t, err)
}

func TestMeta(t *testing.T) {
	s := setupStore(t)

	v, err := s.GetMeta(store.MetaLastPullAt)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMeta(store.MetaLastPullAt, "2026-01-02T03:04:05Z"))
	v, err = s.GetMeta(store.MetaLastPullAt)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05Z", v)
}

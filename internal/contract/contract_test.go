package contract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EpykLab/gryt-ci/internal/audit"
	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

func setupModel(t *testing.T, mode config.ExecutionMode) (*store.Store, *Model) {
	t.Helper()
	st, err := store.Init(t.TempDir())
	require.NoError(t, err)
	ap := audit.NewFileAppender(st.AuditLogPath())
	return st, NewModel(st, ap, mode, "tester")
}

func twoChanges() []model.Change {
	return []model.Change{
		{ID: "auth-token", Type: model.ChangeAdd, Title: "token auth"},
		{ID: "fix-leak", Type: model.ChangeFix, Title: "connection leak"},
	}
}

func TestCreateGeneration(t *testing.T) {
	st, m := setupModel(t, config.ModeLocal)

	g, dec, err := m.CreateGeneration("2.2.0", "summer release", twoChanges())
	require.NoError(t, err)
	assert.Equal(t, "v2.2.0", g.Version, "version is normalized")
	assert.Equal(t, model.GenerationDraft, g.Status)
	assert.Equal(t, "tester", g.CreatedBy)
	assert.False(t, dec.Due, "local mode never schedules a sync")
	for _, c := range g.Changes {
		assert.Equal(t, model.ChangeUnproven, c.Status)
	}

	records, err := audit.NewReader(st.AuditLogPath()).List(audit.Filter{EventType: model.EventGenerationCreated})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCreateGenerationCloudModeSchedulesSync(t *testing.T) {
	_, m := setupModel(t, config.ModeCloud)
	_, dec, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)
	assert.True(t, dec.Due)
	assert.Equal(t, "v1.0.0", dec.Version)
}

func TestCreateGenerationValidation(t *testing.T) {
	_, m := setupModel(t, config.ModeLocal)

	_, _, err := m.CreateGeneration("not-a-version", "", twoChanges())
	assert.True(t, errors.Is(err, errclass.ErrNameInvalid))

	dup := []model.Change{
		{ID: "same", Type: model.ChangeAdd, Title: "a"},
		{ID: "same", Type: model.ChangeFix, Title: "b"},
	}
	_, _, err = m.CreateGeneration("v1.0.0", "", dup)
	assert.True(t, errors.Is(err, errclass.ErrNameInvalid))

	bad := []model.Change{{ID: "x", Type: "feature", Title: "t"}}
	_, _, err = m.CreateGeneration("v1.0.0", "", bad)
	assert.True(t, errors.Is(err, errclass.ErrNameInvalid))
}

func TestCreateDuplicateVersion(t *testing.T) {
	_, m := setupModel(t, config.ModeLocal)
	_, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	_, _, err = m.CreateGeneration("1.0.0", "", twoChanges())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrDuplicateVersion), "normalized duplicates collide")
}

func TestReplaceChangesResetsProof(t *testing.T) {
	st, m := setupModel(t, config.ModeLocal)
	_, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	ev, _, err := m.RecordEvolution("v1.0.0", []string{"auth-token"}, "ci")
	require.NoError(t, err)
	_, _, err = m.CompleteEvolution(ev.Tag, model.EvolutionPass, nil)
	require.NoError(t, err)

	g, _, err := m.ReplaceChanges("v1.0.0", []model.Change{
		{ID: "auth-token", Type: model.ChangeAdd, Title: "token auth v2"},
	})
	require.NoError(t, err)
	require.Len(t, g.Changes, 1)
	assert.Equal(t, model.ChangeUnproven, g.Changes[0].Status, "replacement never carries proof over")

	saved, err := st.GetGeneration("v1.0.0")
	require.NoError(t, err)
	assert.Len(t, saved.Changes, 1)
}

func TestReplaceChangesRequiresDraft(t *testing.T) {
	st, m := setupModel(t, config.ModeLocal)
	g, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	g.Status = model.GenerationPromoted
	require.NoError(t, st.SaveGeneration(g))

	_, _, err = m.ReplaceChanges("v1.0.0", twoChanges())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrImmutableGeneration))
}

func TestRecordEvolutionAllocatesSequentialTags(t *testing.T) {
	_, m := setupModel(t, config.ModeLocal)
	_, _, err := m.CreateGeneration("v2.2.0", "", twoChanges())
	require.NoError(t, err)

	first, _, err := m.RecordEvolution("v2.2.0", []string{"auth-token"}, "ci")
	require.NoError(t, err)
	assert.Equal(t, "v2.2.0-rc.1", first.Tag)
	assert.Equal(t, model.EvolutionRunning, first.Status)

	second, _, err := m.RecordEvolution("v2.2.0", []string{"fix-leak"}, "ci")
	require.NoError(t, err)
	assert.Equal(t, "v2.2.0-rc.2", second.Tag)
}

func TestRecordEvolutionUnknownChange(t *testing.T) {
	_, m := setupModel(t, config.ModeLocal)
	_, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	_, _, err = m.RecordEvolution("v1.0.0", []string{"nope"}, "ci")
	assert.True(t, errors.Is(err, errclass.ErrUnknownChange))

	_, _, err = m.RecordEvolution("v1.0.0", nil, "ci")
	assert.True(t, errors.Is(err, errclass.ErrUnknownChange))
}

func TestDeletedEvolutionTagStaysBurned(t *testing.T) {
	_, m := setupModel(t, config.ModeLocal)
	_, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	first, _, err := m.RecordEvolution("v1.0.0", []string{"auth-token"}, "ci")
	require.NoError(t, err)
	_, err = m.DeleteEvolution(first.Tag)
	require.NoError(t, err)

	next, _, err := m.RecordEvolution("v1.0.0", []string{"auth-token"}, "ci")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0-rc.2", next.Tag, "deleted tags are never reissued")
}

func TestCompleteEvolutionPassMarksProven(t *testing.T) {
	st, m := setupModel(t, config.ModeLocal)
	_, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	ev, _, err := m.RecordEvolution("v1.0.0", []string{"auth-token"}, "ci")
	require.NoError(t, err)

	done, _, err := m.CompleteEvolution(ev.Tag, model.EvolutionPass, map[string]any{"pipeline": "1234"})
	require.NoError(t, err)
	assert.Equal(t, model.EvolutionPass, done.Status)
	require.NotNil(t, done.CompletedAt)

	g, err := st.GetGeneration("v1.0.0")
	require.NoError(t, err)
	proven, _ := g.Change("auth-token")
	unproven, _ := g.Change("fix-leak")
	assert.Equal(t, model.ChangeProven, proven.Status)
	assert.Equal(t, model.ChangeUnproven, unproven.Status, "only referenced changes are proven")
}

func TestProofIsMonotonic(t *testing.T) {
	st, m := setupModel(t, config.ModeLocal)
	_, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	pass, _, err := m.RecordEvolution("v1.0.0", []string{"auth-token"}, "ci")
	require.NoError(t, err)
	_, _, err = m.CompleteEvolution(pass.Tag, model.EvolutionPass, nil)
	require.NoError(t, err)

	fail, _, err := m.RecordEvolution("v1.0.0", []string{"auth-token"}, "ci")
	require.NoError(t, err)
	_, _, err = m.CompleteEvolution(fail.Tag, model.EvolutionFail, nil)
	require.NoError(t, err)

	g, err := st.GetGeneration("v1.0.0")
	require.NoError(t, err)
	c, _ := g.Change("auth-token")
	assert.Equal(t, model.ChangeProven, c.Status, "a later failure never reverts proof")
}

func TestCompleteEvolutionRejectsNonTerminalAndRepeats(t *testing.T) {
	_, m := setupModel(t, config.ModeLocal)
	_, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	ev, _, err := m.RecordEvolution("v1.0.0", []string{"auth-token"}, "ci")
	require.NoError(t, err)

	_, _, err = m.CompleteEvolution(ev.Tag, model.EvolutionRunning, nil)
	require.Error(t, err)

	_, _, err = m.CompleteEvolution(ev.Tag, model.EvolutionPass, nil)
	require.NoError(t, err)
	_, _, err = m.CompleteEvolution(ev.Tag, model.EvolutionFail, nil)
	require.Error(t, err, "terminal outcomes are final")
}

func TestCompletionSyncDecisionByMode(t *testing.T) {
	cases := []struct {
		mode config.ExecutionMode
		due  bool
	}{
		{config.ModeLocal, false},
		{config.ModeHybrid, true},
		{config.ModeCloud, true},
	}
	for _, tc := range cases {
		_, m := setupModel(t, tc.mode)
		_, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
		require.NoError(t, err)
		ev, _, err := m.RecordEvolution("v1.0.0", []string{"auth-token"}, "ci")
		require.NoError(t, err)
		_, dec, err := m.CompleteEvolution(ev.Tag, model.EvolutionPass, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.due, dec.Due, "mode %s", tc.mode)
	}
}

func TestLoadContractFile(t *testing.T) {
	_, m := setupModel(t, config.ModeLocal)

	path := filepath.Join(t.TempDir(), "gryt.yaml")
	doc := `version: v2.2.0
description: summer release
changes:
  - id: auth-token
    type: add
    title: token auth
  - id: fix-leak
    type: fix
    title: connection leak
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	g, _, err := m.LoadContractFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2.2.0", g.Version)
	assert.Len(t, g.Changes, 2)

	// Reloading an amended document replaces the change set.
	amended := `version: v2.2.0
changes:
  - id: auth-token
    type: add
    title: token auth
`
	require.NoError(t, os.WriteFile(path, []byte(amended), 0644))
	g, _, err = m.LoadContractFile(path)
	require.NoError(t, err)
	assert.Len(t, g.Changes, 1)
}

func TestParseContractFileValidation(t *testing.T) {
	dir := t.TempDir()

	noVersion := filepath.Join(dir, "nover.yaml")
	require.NoError(t, os.WriteFile(noVersion, []byte("changes:\n  - id: a\n    type: add\n    title: t\n"), 0644))
	_, err := ParseContractFile(noVersion)
	assert.True(t, errors.Is(err, errclass.ErrNameInvalid))

	noChanges := filepath.Join(dir, "nochanges.yaml")
	require.NoError(t, os.WriteFile(noChanges, []byte("version: v1.0.0\n"), 0644))
	_, err = ParseContractFile(noChanges)
	assert.True(t, errors.Is(err, errclass.ErrNameInvalid))
}

func TestRolledBackGenerationRejectsEvolutions(t *testing.T) {
	st, m := setupModel(t, config.ModeLocal)
	g, _, err := m.CreateGeneration("v1.0.0", "", twoChanges())
	require.NoError(t, err)

	// A rolled back generation is frozen history until a restore
	// returns it to draft.
	g.Status = model.GenerationRolledBack
	require.NoError(t, st.SaveGeneration(g))

	_, _, err = m.RecordEvolution("v1.0.0", []string{"auth-token"}, "tester")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrImmutableGeneration))

	_, _, err = m.ReplaceChanges("v1.0.0", twoChanges())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrImmutableGeneration))
}

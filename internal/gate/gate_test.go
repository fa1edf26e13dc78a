package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EpykLab/gryt-ci/pkg/model"
)

func gen(changes ...model.Change) *model.Generation {
	return &model.Generation{
		GenerationID: "gen-1",
		Version:      "v1.5.0",
		Changes:      changes,
		Status:       model.GenerationDraft,
	}
}

func change(id string, status model.ChangeStatus) model.Change {
	return model.Change{ID: id, Type: model.ChangeAdd, Title: id, Status: status}
}

func evo(seq int, status model.EvolutionStatus, changeIDs ...string) *model.Evolution {
	return &model.Evolution{
		Version:   "v1.5.0",
		Tag:       model.RCTag("v1.5.0", seq),
		Seq:       seq,
		ChangeIDs: changeIDs,
		Status:    status,
	}
}

func TestAllChangesProvenGate(t *testing.T) {
	g := &AllChangesProvenGate{}

	res := g.Check(&Context{Generation: gen(change("a", model.ChangeProven), change("b", model.ChangeProven))})
	assert.True(t, res.Passed)

	res = g.Check(&Context{Generation: gen(change("a", model.ChangeProven), change("b", model.ChangeUnproven))})
	assert.False(t, res.Passed)
	assert.Equal(t, []string{"b"}, res.Details["unproven"])

	res = g.Check(&Context{Generation: gen()})
	assert.False(t, res.Passed, "empty contract must not pass")
}

func TestNoFailedEvolutionsGateResolvedByLaterPass(t *testing.T) {
	g := &NoFailedEvolutionsGate{}
	ctx := &Context{
		Generation: gen(change("a", model.ChangeProven)),
		Evolutions: []*model.Evolution{
			evo(1, model.EvolutionFail, "a"),
			evo(2, model.EvolutionPass, "a"),
		},
	}
	assert.True(t, g.Check(ctx).Passed)
}

// A change proven by an early pass stays proven when a later evolution
// fails, but the failure itself still blocks promotion until the
// change passes again afterwards.
func TestNoFailedEvolutionsGateStickyProofDoesNotResolve(t *testing.T) {
	g := &NoFailedEvolutionsGate{}
	ctx := &Context{
		Generation: gen(change("a", model.ChangeProven)),
		Evolutions: []*model.Evolution{
			evo(1, model.EvolutionPass, "a"),
			evo(2, model.EvolutionFail, "a"),
		},
	}
	res := g.Check(ctx)
	assert.False(t, res.Passed)
	assert.Equal(t, []string{"v1.5.0-rc.2"}, res.Details["unresolved"])
}

func TestNoFailedEvolutionsGatePartialRetry(t *testing.T) {
	g := &NoFailedEvolutionsGate{}
	// rc.1 failed covering a and b; only a was retried.
	ctx := &Context{
		Generation: gen(change("a", model.ChangeProven), change("b", model.ChangeProven)),
		Evolutions: []*model.Evolution{
			evo(1, model.EvolutionFail, "a", "b"),
			evo(2, model.EvolutionPass, "a"),
		},
	}
	assert.False(t, g.Check(ctx).Passed)

	ctx.Evolutions = append(ctx.Evolutions, evo(3, model.EvolutionPass, "b"))
	assert.True(t, g.Check(ctx).Passed)
}

func TestMinEvolutionsGate(t *testing.T) {
	g := &MinEvolutionsGate{Min: 2}
	ctx := &Context{
		Generation: gen(change("a", model.ChangeProven)),
		Evolutions: []*model.Evolution{
			evo(1, model.EvolutionPass, "a"),
			evo(2, model.EvolutionRunning, "a"),
		},
	}
	res := g.Check(ctx)
	require.False(t, res.Passed, "running evolutions are not terminal")

	ctx.Evolutions[1].Status = model.EvolutionFail
	assert.True(t, g.Check(ctx).Passed)
}

func TestHotfixGate(t *testing.T) {
	g := &HotfixGate{}

	ctx := &Context{Generation: gen(change("fix", model.ChangeProven))}
	assert.False(t, g.Check(ctx).Passed, "needs at least one pass")

	ctx.Evolutions = []*model.Evolution{evo(1, model.EvolutionPass, "fix")}
	assert.True(t, g.Check(ctx).Passed)

	ctx.Evolutions = append(ctx.Evolutions, evo(2, model.EvolutionRunning, "fix"))
	assert.False(t, g.Check(ctx).Passed, "running evolution blocks hotfix")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"all_changes_proven", "hotfix", "min_evolutions", "no_failed_evolutions"}, r.Names())

	g, err := r.Get("hotfix", GatesConfig{})
	require.NoError(t, err)
	assert.Equal(t, "hotfix", g.Name())

	_, err = r.Get("bogus", GatesConfig{})
	assert.Error(t, err)
}

func TestRegistry_MinEvolutionsFactoryCarriesPolicy(t *testing.T) {
	r := NewRegistry()

	g, err := r.Get("min_evolutions", GatesConfig{MinEvolutions: 3})
	require.NoError(t, err)

	ctx := &Context{
		Generation: gen(change("x", model.ChangeProven)),
		Evolutions: []*model.Evolution{evo(1, model.EvolutionPass, "x")},
	}
	result := g.Check(ctx)
	assert.False(t, result.Passed, "one terminal evolution cannot satisfy a minimum of three")
}

package gate

import (
	"fmt"

	"github.com/EpykLab/gryt-ci/pkg/model"
)

// AllChangesProvenGate requires every change in the generation to have
// been proven by at least one passing evolution. An empty contract
// never passes.
type AllChangesProvenGate struct{}

func (g *AllChangesProvenGate) Name() string { return "all_changes_proven" }

func (g *AllChangesProvenGate) Check(ctx *Context) model.GateResult {
	if len(ctx.Generation.Changes) == 0 {
		return model.GateResult{
			Gate:    g.Name(),
			Passed:  false,
			Message: "generation declares no changes",
		}
	}

	var unproven []string
	for _, c := range ctx.Generation.Changes {
		if c.Status != model.ChangeProven {
			unproven = append(unproven, c.ID)
		}
	}
	if len(unproven) > 0 {
		return model.GateResult{
			Gate:    g.Name(),
			Passed:  false,
			Message: fmt.Sprintf("%d of %d changes unproven", len(unproven), len(ctx.Generation.Changes)),
			Details: map[string]any{"unproven": unproven},
		}
	}

	return model.GateResult{
		Gate:    g.Name(),
		Passed:  true,
		Message: fmt.Sprintf("all %d changes proven", len(ctx.Generation.Changes)),
	}
}

// NoFailedEvolutionsGate requires every failed evolution to be
// resolved. A failure is resolved only when each change it references
// has a later passing evolution; proof status alone does not clear a
// failure, because proof is sticky while failures demand a retry.
type NoFailedEvolutionsGate struct{}

func (g *NoFailedEvolutionsGate) Name() string { return "no_failed_evolutions" }

func (g *NoFailedEvolutionsGate) Check(ctx *Context) model.GateResult {
	var unresolved []string
	for _, ev := range ctx.Evolutions {
		if ev.Status != model.EvolutionFail {
			continue
		}
		if !failureResolved(ev, ctx.Evolutions) {
			unresolved = append(unresolved, ev.Tag)
		}
	}

	if len(unresolved) > 0 {
		return model.GateResult{
			Gate:    g.Name(),
			Passed:  false,
			Message: fmt.Sprintf("%d failed evolutions without a later passing retry", len(unresolved)),
			Details: map[string]any{"unresolved": unresolved},
		}
	}

	return model.GateResult{
		Gate:    g.Name(),
		Passed:  true,
		Message: "no unresolved evolution failures",
	}
}

func failureResolved(failed *model.Evolution, all []*model.Evolution) bool {
	for _, changeID := range failed.ChangeIDs {
		if !retriedLater(failed, changeID, all) {
			return false
		}
	}
	return true
}

func retriedLater(failed *model.Evolution, changeID string, all []*model.Evolution) bool {
	for _, ev := range all {
		if ev.Seq > failed.Seq && ev.Status == model.EvolutionPass && ev.Proves(changeID) {
			return true
		}
	}
	return false
}

// MinEvolutionsGate requires at least Min evolutions to have reached a
// terminal status.
type MinEvolutionsGate struct {
	Min int
}

func (g *MinEvolutionsGate) Name() string { return "min_evolutions" }

func (g *MinEvolutionsGate) Check(ctx *Context) model.GateResult {
	terminal := 0
	for _, ev := range ctx.Evolutions {
		if ev.Status.Terminal() {
			terminal++
		}
	}

	if terminal < g.Min {
		return model.GateResult{
			Gate:    g.Name(),
			Passed:  false,
			Message: fmt.Sprintf("%d terminal evolutions, need at least %d", terminal, g.Min),
			Details: map[string]any{"terminal": terminal, "required": g.Min},
		}
	}

	return model.GateResult{
		Gate:    g.Name(),
		Passed:  true,
		Message: fmt.Sprintf("%d terminal evolutions", terminal),
	}
}

// HotfixGate is the relaxed gate set for emergency fixes: at least one
// passing evolution and nothing still running.
type HotfixGate struct{}

func (g *HotfixGate) Name() string { return "hotfix" }

func (g *HotfixGate) Check(ctx *Context) model.GateResult {
	passed := 0
	running := 0
	for _, ev := range ctx.Evolutions {
		switch ev.Status {
		case model.EvolutionPass:
			passed++
		case model.EvolutionRunning:
			running++
		}
	}

	if running > 0 {
		return model.GateResult{
			Gate:    g.Name(),
			Passed:  false,
			Message: fmt.Sprintf("%d evolutions still running", running),
		}
	}
	if passed == 0 {
		return model.GateResult{
			Gate:    g.Name(),
			Passed:  false,
			Message: "no passing evolution recorded",
		}
	}

	return model.GateResult{
		Gate:    g.Name(),
		Passed:  true,
		Message: fmt.Sprintf("%d passing evolutions, none running", passed),
	}
}

// Package sync reconciles the local record store with a remote
// authority. Reconciliation is record-wise: one item failing or
// conflicting never aborts the rest of the batch, and pull never
// deletes local-only records.
package sync

import (
	"github.com/EpykLab/gryt-ci/internal/audit"
	"github.com/EpykLab/gryt-ci/internal/remote"
	"github.com/EpykLab/gryt-ci/internal/store"
)

// ItemOutcome classifies what happened to a single record during a
// sync operation.
type ItemOutcome string

const (
	OutcomeCreated  ItemOutcome = "created"
	OutcomeUpdated  ItemOutcome = "updated"
	OutcomeConflict ItemOutcome = "conflict"
	OutcomeErrored  ItemOutcome = "errored"
	OutcomeSkipped  ItemOutcome = "skipped"
)

// ItemResult is the outcome for one record in a sync batch.
type ItemResult struct {
	Kind    string      `json:"kind"` // generation or evolution
	Key     string      `json:"key"`  // version or tag
	Outcome ItemOutcome `json:"outcome"`
	Detail  string      `json:"detail,omitempty"`
}

// Report aggregates a whole sync batch.
type Report struct {
	Items     []ItemResult `json:"items"`
	Created   int          `json:"created"`
	Updated   int          `json:"updated"`
	Conflicts int          `json:"conflicts"`
	Errors    int          `json:"errors"`
}

func (r *Report) add(kind, key string, outcome ItemOutcome, detail string) {
	r.Items = append(r.Items, ItemResult{Kind: kind, Key: key, Outcome: outcome, Detail: detail})
	switch outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeConflict:
		r.Conflicts++
	case OutcomeErrored:
		r.Errors++
	}
}

// Clean reports whether the batch finished without conflicts or errors.
func (r *Report) Clean() bool {
	return r.Conflicts == 0 && r.Errors == 0
}

// Engine drives pull, push, and status against one remote authority.
type Engine struct {
	store  *store.Store
	client remote.Client
	audit  *audit.FileAppender
	actor  string
}

// NewEngine creates a sync engine.
func NewEngine(st *store.Store, client remote.Client, ap *audit.FileAppender, actor string) *Engine {
	return &Engine{store: st, client: client, audit: ap, actor: actor}
}

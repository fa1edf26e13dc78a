package model

// GenerationStatus is the lifecycle state of a release contract.
type GenerationStatus string

const (
	GenerationDraft      GenerationStatus = "draft"
	GenerationPromoted   GenerationStatus = "promoted"
	GenerationRolledBack GenerationStatus = "rolled_back"
)

// Valid reports whether s is a known lifecycle state.
func (s GenerationStatus) Valid() bool {
	switch s {
	case GenerationDraft, GenerationPromoted, GenerationRolledBack:
		return true
	}
	return false
}

// ChangeType classifies a declared unit of work.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeFix    ChangeType = "fix"
	ChangeRefine ChangeType = "refine"
	ChangeRemove ChangeType = "remove"
)

// ValidChangeType reports whether t is one of the four declared kinds.
func ValidChangeType(t ChangeType) bool {
	switch t {
	case ChangeAdd, ChangeFix, ChangeRefine, ChangeRemove:
		return true
	}
	return false
}

// ChangeStatus tracks whether a change has been proven by an evolution.
type ChangeStatus string

const (
	ChangeUnproven ChangeStatus = "unproven"
	ChangeProven   ChangeStatus = "proven"
)

// EvolutionStatus is the state of a proof attempt.
type EvolutionStatus string

const (
	EvolutionRunning EvolutionStatus = "running"
	EvolutionPass    EvolutionStatus = "pass"
	EvolutionFail    EvolutionStatus = "fail"
)

// Terminal reports whether the evolution has reached a final status.
func (s EvolutionStatus) Terminal() bool {
	return s == EvolutionPass || s == EvolutionFail
}

// SyncStatus is the per-record synchronization state against the remote
// authority. synced regresses to not_synced when the record is mutated
// locally.
type SyncStatus string

const (
	SyncNotSynced SyncStatus = "not_synced"
	SyncSyncing   SyncStatus = "syncing"
	SyncSynced    SyncStatus = "synced"
	SyncConflict  SyncStatus = "conflict"
	SyncFailed    SyncStatus = "failed"
)

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

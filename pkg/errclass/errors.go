// Package errclass defines the stable, machine-readable error classes
// surfaced by the contract engine.
package errclass

import "fmt"

// GrytError is a stable, machine-readable error class.
type GrytError struct {
	Code    string
	Message string
}

func (e *GrytError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GrytError) Is(target error) bool {
	t, ok := target.(*GrytError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new GrytError with the same Code but a specific message.
func (e *GrytError) WithMessage(msg string) *GrytError {
	return &GrytError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new GrytError with a formatted message.
func (e *GrytError) WithMessagef(format string, args ...any) *GrytError {
	return &GrytError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// All stable error classes.
var (
	// Structural and referential errors fail the single operation
	// immediately with no retry and no partial application.
	ErrDuplicateVersion    = &GrytError{Code: "E_DUPLICATE_VERSION"}
	ErrImmutableGeneration = &GrytError{Code: "E_IMMUTABLE_GENERATION"}
	ErrUnknownGeneration   = &GrytError{Code: "E_UNKNOWN_GENERATION"}
	ErrUnknownChange       = &GrytError{Code: "E_UNKNOWN_CHANGE"}
	ErrUnknownEvolution    = &GrytError{Code: "E_UNKNOWN_EVOLUTION"}
	ErrUnknownSnapshot     = &GrytError{Code: "E_UNKNOWN_SNAPSHOT"}
	ErrNameInvalid         = &GrytError{Code: "E_NAME_INVALID"}

	// Aggregate gate failure; the full gate report travels with the
	// operation result, not inside the error.
	ErrGateFailure = &GrytError{Code: "E_GATE_FAILURE"}

	// Sync errors. VersionConflict is per-item and never aborts the
	// batch; RemoteUnreachable is transient and retryable by the caller.
	ErrVersionConflict   = &GrytError{Code: "E_VERSION_CONFLICT"}
	ErrRemoteUnreachable = &GrytError{Code: "E_REMOTE_UNREACHABLE"}
	ErrRemoteNotFound    = &GrytError{Code: "E_REMOTE_NOT_FOUND"}

	// Snapshot and rollback IO errors.
	ErrSnapshotIO = &GrytError{Code: "E_SNAPSHOT_IO"}
	ErrRollbackIO = &GrytError{Code: "E_ROLLBACK_IO"}

	// Store lock errors. Conflict means another process holds an
	// unexpired lease; NotHeld means the caller's lease is gone.
	ErrLockConflict = &GrytError{Code: "E_LOCK_CONFLICT"}
	ErrLockNotHeld  = &GrytError{Code: "E_LOCK_NOT_HELD"}
)

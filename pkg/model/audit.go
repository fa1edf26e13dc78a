package model

import "time"

// AuditEventType identifies the type of auditable event.
type AuditEventType string

const (
	EventGenerationCreated  AuditEventType = "generation.created"
	EventChangesReplaced    AuditEventType = "generation.changes_replaced"
	EventGenerationPromoted AuditEventType = "generation.promoted"
	EventHotfixPromoted     AuditEventType = "hotfix.promoted"
	EventEvolutionStarted   AuditEventType = "evolution.started"
	EventEvolutionCompleted AuditEventType = "evolution.completed"
	EventEvolutionDeleted   AuditEventType = "evolution.deleted"
	EventSyncPush           AuditEventType = "sync.push"
	EventSyncPull           AuditEventType = "sync.pull"
	EventSnapshotCreated    AuditEventType = "snapshot.created"
	EventStoreRolledBack    AuditEventType = "store.rolled_back"
)

// AuditRecord is a single line in the audit log (JSONL format). Records
// are append-only and hash-chained: each record carries the hash of its
// predecessor, so tampering anywhere in the log is detectable.
type AuditRecord struct {
	EventID    string         `json:"event_id"`
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	SubjectID  string         `json:"subject_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	PrevHash   HashValue      `json:"prev_hash"`
	RecordHash HashValue      `json:"record_hash"`
}

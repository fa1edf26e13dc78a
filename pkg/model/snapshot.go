package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// SnapshotID is the unique identifier for a store snapshot: <unix_ms>-<rand8hex>
type SnapshotID string

// NewSnapshotID generates a new unique snapshot ID.
func NewSnapshotID() SnapshotID {
	ts := time.Now().UnixMilli()
	var randBytes [4]byte
	if _, err := rand.Read(randBytes[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return SnapshotID(fmt.Sprintf("%013d-%s", ts, hex.EncodeToString(randBytes[:])))
}

// ShortID returns the first 8 characters for display.
func (id SnapshotID) ShortID() string {
	s := string(id)
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

// String returns the full snapshot ID as string.
func (id SnapshotID) String() string {
	return string(id)
}

// SnapshotInfo is the on-disk metadata of one record-store snapshot.
// Snapshots are whole-store, point-in-time copies taken before risky
// operations (promotion, rollback).
type SnapshotInfo struct {
	SnapshotID SnapshotID `json:"snapshot_id"`
	Label      string     `json:"label,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	SizeBytes  int64      `json:"size_bytes"`
}

// Package lock provides a single-writer lease lock over the store.
// Mutating commands take the lock so two concurrent gryt processes
// cannot interleave writes to the same repository.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/fsutil"
)

const lockFileName = "lock.json"

// DefaultLeaseTTL bounds how long a crashed holder can block writers.
const DefaultLeaseTTL = 5 * time.Minute

// Record is the on-disk lock state.
type Record struct {
	HolderNonce string    `json:"holder_nonce"`
	PID         int       `json:"pid"`
	Purpose     string    `json:"purpose"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at the given time.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Manager acquires and releases the store lock.
type Manager struct {
	grytDir string
	ttl     time.Duration
	mu      sync.Mutex
}

// NewManager creates a lock manager rooted at the .gryt directory.
func NewManager(grytDir string) *Manager {
	return &Manager{grytDir: grytDir, ttl: DefaultLeaseTTL}
}

// Acquire takes the store lock. An unexpired lock held by another
// process returns ErrLockConflict; an expired lock is taken over.
func (m *Manager) Acquire(purpose string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.lockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	// O_CREAT|O_EXCL makes the acquire atomic across processes.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock: %w", err)
		}
		existing, readErr := m.read(path)
		if readErr != nil {
			return nil, fmt.Errorf("read existing lock: %w", readErr)
		}
		if !existing.Expired(time.Now()) {
			return nil, errclass.ErrLockConflict.WithMessagef(
				"store locked by pid %d for %s until %s",
				existing.PID, existing.Purpose, existing.ExpiresAt.Format(time.RFC3339))
		}
		// Lease lapsed; replace the stale record in place.
		rec := m.newRecord(purpose)
		if err := m.write(path, rec); err != nil {
			return nil, fmt.Errorf("take over stale lock: %w", err)
		}
		return rec, nil
	}
	defer file.Close()

	rec := m.newRecord(purpose)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lock: %w", err)
	}
	if err := file.Sync(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("sync lock: %w", err)
	}
	return rec, nil
}

// Renew extends the lease for the holder identified by nonce.
func (m *Manager) Renew(nonce string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.lockPath()
	rec, err := m.read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errclass.ErrLockNotHeld.WithMessage("no lock held")
		}
		return nil, fmt.Errorf("read lock: %w", err)
	}
	if rec.HolderNonce != nonce {
		return nil, errclass.ErrLockNotHeld.WithMessage("nonce mismatch")
	}
	if rec.Expired(time.Now()) {
		return nil, errclass.ErrLockNotHeld.WithMessage("lease expired")
	}
	rec.ExpiresAt = time.Now().UTC().Add(m.ttl)
	if err := m.write(path, rec); err != nil {
		return nil, fmt.Errorf("renew lock: %w", err)
	}
	return rec, nil
}

// Release frees the lock. Releasing an already-free lock is a no-op;
// releasing someone else's lock is an error.
func (m *Manager) Release(nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.lockPath()
	rec, err := m.read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lock: %w", err)
	}
	if rec.HolderNonce != nonce {
		return errclass.ErrLockNotHeld.WithMessage("cannot release: nonce mismatch")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Status returns the current lock record, or nil when the store is
// unlocked.
func (m *Manager) Status() (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.read(m.lockPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read lock: %w", err)
	}
	return rec, nil
}

func (m *Manager) newRecord(purpose string) *Record {
	now := time.Now().UTC()
	return &Record{
		HolderNonce: uuid.NewString(),
		PID:         os.Getpid(),
		Purpose:     purpose,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(m.ttl),
	}
}

func (m *Manager) lockPath() string {
	return filepath.Join(m.grytDir, lockFileName)
}

func (m *Manager) read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &rec, nil
}

func (m *Manager) write(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock: %w", err)
	}
	return fsutil.AtomicWrite(path, data, 0644)
}

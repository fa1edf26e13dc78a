// Package store implements the durable record store for generations,
// evolutions, and sync metadata. All records live as JSON files under
// .gryt/data/ so the whole store can be copied point-in-time for
// snapshotting. The store enforces single-writer discipline per process:
// every mutation runs under an exclusive lock, reads under a shared lock.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/EpykLab/gryt-ci/pkg/fsutil"
)

const (
	GrytDirName = ".gryt"
	dataDirName = "data"
)

// Store is a file-backed record store rooted at a gryt repository.
type Store struct {
	root string
	mu   sync.RWMutex
}

// Init creates the on-disk layout for a new repository at root and
// returns the opened store.
func Init(root string) (*Store, error) {
	grytDir := filepath.Join(root, GrytDirName)
	dirs := []string{
		grytDir,
		filepath.Join(grytDir, dataDirName),
		filepath.Join(grytDir, dataDirName, "generations"),
		filepath.Join(grytDir, dataDirName, "evolutions"),
		filepath.Join(grytDir, "snapshots"),
		filepath.Join(grytDir, "audit"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := fsutil.FsyncDir(root); err != nil {
		return nil, fmt.Errorf("fsync repo root: %w", err)
	}
	return &Store{root: root}, nil
}

// Open opens an existing repository at root.
func Open(root string) (*Store, error) {
	grytDir := filepath.Join(root, GrytDirName)
	info, err := os.Stat(grytDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no gryt repository at %s (missing %s/)", root, GrytDirName)
	}
	return &Store{root: root}, nil
}

// Discover walks up from cwd to find the repository root (the directory
// containing .gryt/) and opens its store.
func Discover(cwd string) (*Store, error) {
	path := cwd
	for {
		grytDir := filepath.Join(path, GrytDirName)
		if info, err := os.Stat(grytDir); err == nil && info.IsDir() {
			return &Store{root: path}, nil
		}
		parent := filepath.Dir(path)
		if parent == path {
			return nil, fmt.Errorf("no gryt repository found (no %s/ in parent directories)", GrytDirName)
		}
		path = parent
	}
}

// Root returns the repository root directory.
func (s *Store) Root() string {
	return s.root
}

// GrytDir returns the .gryt directory path.
func (s *Store) GrytDir() string {
	return filepath.Join(s.root, GrytDirName)
}

// DataDir returns the directory holding all records. The snapshot
// manager copies and replaces this directory wholesale; nothing else
// touches snapshot storage.
func (s *Store) DataDir() string {
	return filepath.Join(s.root, GrytDirName, dataDirName)
}

// AuditLogPath returns the path of the append-only audit log.
func (s *Store) AuditLogPath() string {
	return filepath.Join(s.root, GrytDirName, "audit", "audit.jsonl")
}

// SnapshotsDir returns the snapshot storage directory.
func (s *Store) SnapshotsDir() string {
	return filepath.Join(s.root, GrytDirName, "snapshots")
}

func (s *Store) generationsDir() string {
	return filepath.Join(s.DataDir(), "generations")
}

func (s *Store) evolutionsDir() string {
	return filepath.Join(s.DataDir(), "evolutions")
}

func (s *Store) metaPath() string {
	return filepath.Join(s.DataDir(), "meta.json")
}

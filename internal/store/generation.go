package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/fsutil"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

func (s *Store) generationPath(version string) string {
	return filepath.Join(s.generationsDir(), version+".json")
}

// CreateGeneration inserts a new generation record. The version string
// is the identity key: an existing record with the same version fails
// with ErrDuplicateVersion.
func (s *Store) CreateGeneration(g *model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.generationPath(g.Version)
	if _, err := os.Stat(path); err == nil {
		return errclass.ErrDuplicateVersion.WithMessagef("generation %s already exists", g.Version)
	}
	return s.writeGeneration(g)
}

// SaveGeneration overwrites an existing generation record verbatim.
func (s *Store) SaveGeneration(g *model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeGeneration(g)
}

func (s *Store) writeGeneration(g *model.Generation) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal generation %s: %w", g.Version, err)
	}
	if err := fsutil.AtomicWrite(s.generationPath(g.Version), data, 0644); err != nil {
		return fmt.Errorf("write generation %s: %w", g.Version, err)
	}
	return nil
}

// GetGeneration loads a generation by version.
func (s *Store) GetGeneration(version string) (*model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readGeneration(version)
}

func (s *Store) readGeneration(version string) (*model.Generation, error) {
	data, err := os.ReadFile(s.generationPath(version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errclass.ErrUnknownGeneration.WithMessagef("generation %s not found", version)
		}
		return nil, fmt.Errorf("read generation %s: %w", version, err)
	}
	var g model.Generation
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse generation %s: %w", version, err)
	}
	return &g, nil
}

// GetGenerationByRemoteID finds the local generation linked to the given
// remote identity, if any.
func (s *Store) GetGenerationByRemoteID(remoteID string) (*model.Generation, error) {
	gens, err := s.ListGenerations()
	if err != nil {
		return nil, err
	}
	for _, g := range gens {
		if g.Sync.RemoteID == remoteID {
			return g, nil
		}
	}
	return nil, errclass.ErrUnknownGeneration.WithMessagef("no generation with remote id %s", remoteID)
}

// ListGenerations returns every generation, newest first.
func (s *Store) ListGenerations() ([]*model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.generationsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read generations directory: %w", err)
	}

	var gens []*model.Generation
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		version := strings.TrimSuffix(entry.Name(), ".json")
		g, err := s.readGeneration(version)
		if err != nil {
			// Skip corrupted records rather than failing the listing
			continue
		}
		gens = append(gens, g)
	}

	sort.Slice(gens, func(i, j int) bool {
		return gens[i].CreatedAt.After(gens[j].CreatedAt)
	})
	return gens, nil
}

// AllocateRC increments and persists the generation's RC counter and
// returns the allocated sequence number. The counter never decreases,
// so a sequence number is never handed out twice for one version.
func (s *Store) AllocateRC(version string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.readGeneration(version)
	if err != nil {
		return 0, err
	}
	g.RCCounter++
	if err := s.writeGeneration(g); err != nil {
		return 0, err
	}
	return g.RCCounter, nil
}

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

// Evolution records are keyed by tag. The tag embeds the version, so
// tags are globally unique and files group naturally per generation.
func (s *Store) evolutionPath(version, tag string) string {
	return filepath.Join(s.evolutionsDir(), version, tag+".json")
}

// SaveEvolution inserts or overwrites an evolution record.
func (s *Store) SaveEvolution(e *model.Evolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEvolution(e)
}

func (s *Store) writeEvolution(e *model.Evolution) error {
	dir := filepath.Join(s.evolutionsDir(), e.Version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create evolutions dir: %w", err)
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evolution %s: %w", e.Tag, err)
	}
	if err := fsutil.AtomicWrite(s.evolutionPath(e.Version, e.Tag), data, 0644); err != nil {
		return fmt.Errorf("write evolution %s: %w", e.Tag, err)
	}
	return nil
}

// GetEvolution loads an evolution by its RC tag.
func (s *Store) GetEvolution(tag string) (*model.Evolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := versionFromTag(tag)
	if !ok {
		return nil, errclass.ErrUnknownEvolution.WithMessagef("malformed tag %s", tag)
	}
	return s.readEvolution(version, tag)
}

func (s *Store) readEvolution(version, tag string) (*model.Evolution, error) {
	data, err := os.ReadFile(s.evolutionPath(version, tag))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errclass.ErrUnknownEvolution.WithMessagef("evolution %s not found", tag)
		}
		return nil, fmt.Errorf("read evolution %s: %w", tag, err)
	}
	var e model.Evolution
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse evolution %s: %w", tag, err)
	}
	return &e, nil
}

// ListEvolutions returns every evolution of a generation in creation
// order (ascending sequence number).
func (s *Store) ListEvolutions(version string) ([]*model.Evolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEvolutions(version)
}

func (s *Store) listEvolutions(version string) ([]*model.Evolution, error) {
	dir := filepath.Join(s.evolutionsDir(), version)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read evolutions directory: %w", err)
	}

	var evos []*model.Evolution
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		tag := strings.TrimSuffix(entry.Name(), ".json")
		e, err := s.readEvolution(version, tag)
		if err != nil {
			continue
		}
		evos = append(evos, e)
	}

	sort.Slice(evos, func(i, j int) bool {
		return evos[i].Seq < evos[j].Seq
	})
	return evos, nil
}

// ListAllEvolutions returns the evolutions of every generation.
func (s *Store) ListAllEvolutions() ([]*model.Evolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.evolutionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read evolutions directory: %w", err)
	}

	var all []*model.Evolution
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		evos, err := s.listEvolutions(entry.Name())
		if err != nil {
			return nil, err
		}
		all = append(all, evos...)
	}
	return all, nil
}

// DeleteEvolution removes an evolution record. The generation's RC
// counter is untouched, so the deleted tag is never reallocated.
func (s *Store) DeleteEvolution(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, ok := versionFromTag(tag)
	if !ok {
		return errclass.ErrUnknownEvolution.WithMessagef("malformed tag %s", tag)
	}
	path := s.evolutionPath(version, tag)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errclass.ErrUnknownEvolution.WithMessagef("evolution %s not found", tag)
		}
		return fmt.Errorf("delete evolution %s: %w", tag, err)
	}
	return fsutil.FsyncDir(filepath.Dir(path))
}

// versionFromTag splits "v1.2.0-rc.3" into its version prefix.
func versionFromTag(tag string) (string, bool) {
	idx := strings.LastIndex(tag, "-rc.")
	if idx <= 0 {
		return "", false
	}
	return tag[:idx], true
}

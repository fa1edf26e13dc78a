package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/EpykLab/gryt-ci/pkg/fsutil"
)

// Sync bookkeeping that is not part of any single record, e.g. the
// timestamp of the last successful pull.
const (
	MetaLastPullAt = "last_pull_at"
)

// GetMeta reads one sync metadata value. Missing keys return "".
func (s *Store) GetMeta(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta()
	if err != nil {
		return "", err
	}
	return meta[key], nil
}

// SetMeta stores one sync metadata value.
func (s *Store) SetMeta(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta()
	if err != nil {
		return err
	}
	meta[key] = value

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	return fsutil.AtomicWrite(s.metaPath(), data, 0644)
}

func (s *Store) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read meta: %w", err)
	}
	meta := map[string]string{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse meta: %w", err)
	}
	return meta, nil
}

package contract

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

// ContractFile is the declarative, human-edited source document that
// enumerates a generation's changes. The model consumes it one-way and
// never writes back to it.
type ContractFile struct {
	Version     string             `yaml:"version"`
	Description string             `yaml:"description,omitempty"`
	Changes     []ContractFileItem `yaml:"changes"`
}

// ContractFileItem is one declared change in the contract file.
type ContractFileItem struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// ParseContractFile reads and parses a contract file from disk.
func ParseContractFile(path string) (*ContractFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract file: %w", err)
	}
	var cf ContractFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse contract file: %w", err)
	}
	if cf.Version == "" {
		return nil, errclass.ErrNameInvalid.WithMessage("contract file missing version")
	}
	if len(cf.Changes) == 0 {
		return nil, errclass.ErrNameInvalid.WithMessagef("contract file for %s declares no changes", cf.Version)
	}
	return &cf, nil
}

func (cf *ContractFile) changes() []model.Change {
	out := make([]model.Change, 0, len(cf.Changes))
	for _, item := range cf.Changes {
		out = append(out, model.Change{
			ID:          item.ID,
			Type:        model.ChangeType(item.Type),
			Title:       item.Title,
			Description: item.Description,
		})
	}
	return out
}

// LoadContractFile loads the contract file at path and applies it:
// a new generation is created when the version is unknown, otherwise
// the existing draft's change set is replaced wholesale.
func (m *Model) LoadContractFile(path string) (*model.Generation, SyncDecision, error) {
	cf, err := ParseContractFile(path)
	if err != nil {
		return nil, SyncDecision{}, err
	}

	g, dec, err := m.CreateGeneration(cf.Version, cf.Description, cf.changes())
	if err == nil {
		return g, dec, nil
	}
	if !errors.Is(err, errclass.ErrDuplicateVersion) {
		return nil, SyncDecision{}, err
	}
	return m.ReplaceChanges(cf.Version, cf.changes())
}

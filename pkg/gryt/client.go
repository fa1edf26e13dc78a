// Package gryt provides a high-level API for embedding release
// governance in other Go programs. It wraps the store, contract
// engine, promotion gates, and snapshots behind one client.
package gryt

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/EpykLab/gryt-ci/internal/audit"
	"github.com/EpykLab/gryt-ci/internal/contract"
	"github.com/EpykLab/gryt-ci/internal/gate"
	"github.com/EpykLab/gryt-ci/internal/hotfix"
	"github.com/EpykLab/gryt-ci/internal/snapshot"
	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/internal/tagger"
	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

// Client provides high-level gryt operations on a repository.
type Client struct {
	store     *store.Store
	cfg       *config.Config
	audit     *audit.FileAppender
	contract  *contract.Model
	snapshots *snapshot.Manager
	hotfix    *hotfix.Manager
	actor     string
}

// InitOptions configures repository initialization.
type InitOptions struct {
	Mode  config.ExecutionMode // Defaults to hybrid.
	Actor string               // Recorded on audit events; defaults to $USER.
}

// Init creates a new gryt repository at path.
func Init(path string, opts InitOptions) (*Client, error) {
	st, err := store.Init(path)
	if err != nil {
		return nil, fmt.Errorf("gryt init: %w", err)
	}

	cfg := config.Default()
	if opts.Mode != "" {
		cfg.ExecutionMode = opts.Mode
	}
	if err := config.Save(st.Root(), cfg); err != nil {
		return nil, fmt.Errorf("gryt init: %w", err)
	}
	return newClient(st, cfg, opts.Actor), nil
}

// Open opens the gryt repository at or above path.
func Open(path string) (*Client, error) {
	st, err := store.Discover(path)
	if err != nil {
		return nil, fmt.Errorf("gryt open: %w", err)
	}
	cfg, err := config.Load(st.Root())
	if err != nil {
		return nil, fmt.Errorf("gryt open: %w", err)
	}
	return newClient(st, cfg, ""), nil
}

// OpenOrInit opens an existing repository, or initializes one if none
// exists at path.
func OpenOrInit(path string, opts InitOptions) (*Client, error) {
	grytDir := filepath.Join(path, store.GrytDirName)
	if info, err := os.Stat(grytDir); err == nil && info.IsDir() {
		return Open(path)
	}
	return Init(path, opts)
}

func newClient(st *store.Store, cfg *config.Config, actor string) *Client {
	if actor == "" {
		if actor = os.Getenv("USER"); actor == "" {
			actor = "unknown"
		}
	}
	ap := audit.NewFileAppender(st.AuditLogPath())
	cm := contract.NewModel(st, ap, cfg.ExecutionMode, actor)
	return &Client{
		store:     st,
		cfg:       cfg,
		audit:     ap,
		contract:  cm,
		snapshots: snapshot.NewManager(st, ap, actor),
		hotfix:    hotfix.NewManager(st, cm),
		actor:     actor,
	}
}

// Root returns the repository root directory.
func (c *Client) Root() string {
	return c.store.Root()
}

// CreateGeneration creates a draft generation with its declared
// changes.
func (c *Client) CreateGeneration(version, description string, changes []model.Change) (*model.Generation, error) {
	g, _, err := c.contract.CreateGeneration(version, description, changes)
	return g, err
}

// LoadContract applies a YAML contract file, creating or replacing the
// draft generation it describes.
func (c *Client) LoadContract(path string) (*model.Generation, error) {
	g, _, err := c.contract.LoadContractFile(path)
	return g, err
}

// Generation returns a generation by version.
func (c *Client) Generation(version string) (*model.Generation, error) {
	return c.store.GetGeneration(version)
}

// Generations lists all generations, newest first.
func (c *Client) Generations() ([]*model.Generation, error) {
	return c.store.ListGenerations()
}

// StartEvolution allocates the next RC tag for the generation and
// records a running evolution claiming the given changes.
func (c *Client) StartEvolution(version string, changeIDs []string, owner string) (*model.Evolution, error) {
	if owner == "" {
		owner = c.actor
	}
	ev, _, err := c.contract.RecordEvolution(version, changeIDs, owner)
	return ev, err
}

// CompleteEvolution records a terminal outcome for an evolution. A
// pass marks every referenced change proven.
func (c *Client) CompleteEvolution(tag string, status model.EvolutionStatus, details map[string]any) (*model.Evolution, error) {
	ev, _, err := c.contract.CompleteEvolution(tag, status, details)
	return ev, err
}

// Evolutions lists a generation's evolutions in tag order.
func (c *Client) Evolutions(version string) ([]*model.Evolution, error) {
	return c.store.ListEvolutions(version)
}

// Evaluate runs every promotion gate against the generation without
// promoting it.
func (c *Client) Evaluate(version string) (*model.GateReport, error) {
	return c.gateEngine().Evaluate(version)
}

// Promote evaluates all gates and, if every one passes, promotes the
// generation. The store is snapshotted first.
func (c *Client) Promote(version string) (*model.Generation, *model.GateReport, error) {
	return c.gateEngine().Promote(version)
}

// CreateHotfix creates a hotfix generation on the next free patch
// version of a promoted release.
func (c *Client) CreateHotfix(baseVersion, title, description string) (*model.Generation, error) {
	g, _, err := c.hotfix.Create(baseVersion, title, description)
	return g, err
}

// Snapshot copies the whole record store aside under the given label.
func (c *Client) Snapshot(label string) (*model.SnapshotInfo, error) {
	return c.snapshots.Create(label)
}

// Snapshots lists snapshots, newest first.
func (c *Client) Snapshots() ([]*model.SnapshotInfo, error) {
	return c.snapshots.List()
}

// Rollback replaces the record store with a snapshot's contents. The
// live state is snapshotted first so the rollback can be undone.
func (c *Client) Rollback(query string) (*snapshot.RestoreResult, error) {
	return c.snapshots.Restore(query)
}

func (c *Client) gateEngine() *gate.Engine {
	var tg gate.Tagger = tagger.Noop{}
	if git := tagger.NewGit(c.store.Root()); git.Available() {
		tg = git
	}
	return gate.NewEngine(c.store, c.audit, c.snapshots, tg, c.cfg.Gates, c.actor)
}

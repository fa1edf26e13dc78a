package cli

import (
	"os"

	"github.com/EpykLab/gryt-ci/internal/audit"
	"github.com/EpykLab/gryt-ci/internal/contract"
	"github.com/EpykLab/gryt-ci/internal/gate"
	"github.com/EpykLab/gryt-ci/internal/hotfix"
	"github.com/EpykLab/gryt-ci/internal/lock"
	"github.com/EpykLab/gryt-ci/internal/remote"
	"github.com/EpykLab/gryt-ci/internal/snapshot"
	"github.com/EpykLab/gryt-ci/internal/store"
	syncengine "github.com/EpykLab/gryt-ci/internal/sync"
	"github.com/EpykLab/gryt-ci/internal/tagger"
	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/logging"
	"github.com/EpykLab/gryt-ci/pkg/webhook"
)

// env bundles the wired components every command works against.
type env struct {
	store     *store.Store
	cfg       *config.Config
	audit     *audit.FileAppender
	contract  *contract.Model
	snapshots *snapshot.Manager
	hotfix    *hotfix.Manager
	actor     string
}

// requireEnv discovers the store from CWD and wires the components, or
// exits with an error.
func requireEnv() *env {
	cwd, err := os.Getwd()
	if err != nil {
		fmtErr("cannot get current directory: %v", err)
		os.Exit(1)
	}
	st, err := store.Discover(cwd)
	if err != nil {
		fmtErr("not a gryt store (run 'gryt init' first): %v", err)
		os.Exit(1)
	}
	cfg, err := config.Load(st.Root())
	if err != nil {
		fmtErr("load config: %v", err)
		os.Exit(1)
	}
	configureLogging(cfg)

	actor := actorName()
	ap := audit.NewFileAppender(st.AuditLogPath())
	cm := contract.NewModel(st, ap, cfg.ExecutionMode, actor)

	return &env{
		store:     st,
		cfg:       cfg,
		audit:     ap,
		contract:  cm,
		snapshots: snapshot.NewManager(st, ap, actor),
		hotfix:    hotfix.NewManager(st, cm),
		actor:     actor,
	}
}

func configureLogging(cfg *config.Config) {
	level := logging.Level(cfg.Logging.Level)
	switch level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		level = logging.LevelInfo
	}
	logging.SetGlobal(logging.NewLogger(level))
}

// actorName resolves who is operating: GRYT_ACTOR wins, then USER.
func actorName() string {
	if actor := os.Getenv("GRYT_ACTOR"); actor != "" {
		return actor
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// gateEngine wires the promotion engine with snapshots and, when the
// store lives in a git work tree, the git tagger.
func (e *env) gateEngine() *gate.Engine {
	var tg gate.Tagger = tagger.Noop{}
	if git := tagger.NewGit(e.store.Root()); git.Available() {
		tg = git
	}
	return gate.NewEngine(e.store, e.audit, e.snapshots, tg, e.cfg.Gates, e.actor)
}

// remoteClient builds the sync client from config, or exits when the
// remote is not configured.
func (e *env) remoteClient() remote.Client {
	client, err := remote.NewHTTPClient(e.cfg.Remote)
	if err != nil {
		fmtErr("remote not configured: %v (set remote.url in .gryt/config.yaml)", err)
		os.Exit(1)
	}
	return client
}

func (e *env) syncEngine() *syncengine.Engine {
	return syncengine.NewEngine(e.store, e.remoteClient(), e.audit, e.actor)
}

// notify delivers a lifecycle webhook. Delivery failures never fail
// the local operation; they surface as warnings.
func (e *env) notify(send func(*webhook.Client) error) {
	if !e.cfg.Webhooks.Enabled {
		return
	}
	if err := send(webhook.NewClient(e.cfg.Webhooks)); err != nil {
		logging.Warn("webhook delivery", map[string]any{"error": err.Error()})
	}
}

// withStoreLock runs fn while holding the store's single-writer lock.
// All mutating commands go through here so concurrent gryt processes
// cannot interleave writes.
func (e *env) withStoreLock(purpose string, fn func() error) error {
	mgr := lock.NewManager(e.store.GrytDir())
	rec, err := mgr.Acquire(purpose)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := mgr.Release(rec.HolderNonce); relErr != nil {
			logging.Warn("release store lock", map[string]any{"error": relErr.Error()})
		}
	}()
	return fn()
}

package sync

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EpykLab/gryt-ci/internal/audit"
	"github.com/EpykLab/gryt-ci/internal/remote"
	"github.com/EpykLab/gryt-ci/internal/remoted"
	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	store  *store.Store
	engine *Engine
	client remote.Client
}

// newHarness wires a fresh local store to a shared remote authority.
func newHarness(t *testing.T, srv *httptest.Server) *harness {
	t.Helper()
	st, err := store.Init(t.TempDir())
	require.NoError(t, err)
	client, err := remote.NewHTTPClient(config.RemoteConfig{URL: srv.URL})
	require.NoError(t, err)
	ap := audit.NewFileAppender(st.AuditLogPath())
	return &harness{
		store:  st,
		engine: NewEngine(st, client, ap, "tester"),
		client: client,
	}
}

func newAuthority(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(remoted.NewServer(nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func seedLocal(t *testing.T, st *store.Store, version string) *model.Generation {
	t.Helper()
	g := &model.Generation{
		GenerationID: "gen-" + version,
		Version:      version,
		Changes:      []model.Change{{ID: "c1", Type: model.ChangeAdd, Title: "work", Status: model.ChangeUnproven}},
		Status:       model.GenerationDraft,
		CreatedAt:    time.Now().UTC(),
		Sync:         model.SyncMeta{Status: model.SyncNotSynced},
	}
	require.NoError(t, st.CreateGeneration(g))
	return g
}

func seedLocalEvolution(t *testing.T, st *store.Store, version string, seq int) *model.Evolution {
	t.Helper()
	ev := &model.Evolution{
		EvolutionID:  "evo-" + model.RCTag(version, seq),
		GenerationID: "gen-" + version,
		Version:      version,
		Tag:          model.RCTag(version, seq),
		Seq:          seq,
		ChangeIDs:    []string{"c1"},
		Status:       model.EvolutionRunning,
		StartedAt:    time.Now().UTC(),
		Sync:         model.SyncMeta{Status: model.SyncNotSynced},
	}
	require.NoError(t, st.SaveEvolution(ev))
	return ev
}

func TestPushCreatesRemoteRecords(t *testing.T) {
	srv := newAuthority(t)
	h := newHarness(t, srv)
	ctx := context.Background()

	seedLocal(t, h.store, "v1.0.0")
	seedLocalEvolution(t, h.store, "v1.0.0", 1)

	report, err := h.engine.Push(ctx, "")
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.Created)

	g, err := h.store.GetGeneration("v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, g.Sync.Status)
	assert.NotEmpty(t, g.Sync.RemoteID)
	require.NotNil(t, g.Sync.LastSyncedAt)

	ev, err := h.store.GetEvolution("v1.0.0-rc.1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, ev.Sync.Status)
	assert.NotEmpty(t, ev.Sync.RemoteID)

	onRemote, err := h.client.GetGenerationByVersion(ctx, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, g.Sync.RemoteID, onRemote.ID)
}

func TestPushUpdatesKnownRecords(t *testing.T) {
	srv := newAuthority(t)
	h := newHarness(t, srv)
	ctx := context.Background()

	seedLocal(t, h.store, "v1.0.0")
	_, err := h.engine.Push(ctx, "")
	require.NoError(t, err)

	g, err := h.store.GetGeneration("v1.0.0")
	require.NoError(t, err)
	g.Description = "amended"
	g.Sync.MarkDirty()
	require.NoError(t, h.store.SaveGeneration(g))

	report, err := h.engine.Push(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Created)

	onRemote, err := h.client.GetGenerationByVersion(ctx, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "amended", onRemote.Description)
}

func TestPushVersionConflictIsolated(t *testing.T) {
	srv := newAuthority(t)
	ctx := context.Background()

	// Another client already claimed v1.0.0 on the authority.
	other := newHarness(t, srv)
	seedLocal(t, other.store, "v1.0.0")
	_, err := other.engine.Push(ctx, "")
	require.NoError(t, err)

	h := newHarness(t, srv)
	seedLocal(t, h.store, "v1.0.0")
	seedLocal(t, h.store, "v2.0.0")

	report, err := h.engine.Push(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 1, report.Created, "conflict does not abort the batch")

	conflicted, err := h.store.GetGeneration("v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.SyncFailed, conflicted.Sync.Status)
	assert.Empty(t, conflicted.Sync.RemoteID)

	clean, err := h.store.GetGeneration("v2.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, clean.Sync.Status)
}

func TestPushScopedToVersion(t *testing.T) {
	srv := newAuthority(t)
	h := newHarness(t, srv)
	ctx := context.Background()

	seedLocal(t, h.store, "v1.0.0")
	seedLocal(t, h.store, "v2.0.0")

	report, err := h.engine.Push(ctx, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	untouched, err := h.store.GetGeneration("v2.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.SyncNotSynced, untouched.Sync.Status)
}

func TestPullMaterializesRemoteRecords(t *testing.T) {
	srv := newAuthority(t)
	ctx := context.Background()

	producer := newHarness(t, srv)
	seedLocal(t, producer.store, "v1.0.0")
	seedLocalEvolution(t, producer.store, "v1.0.0", 1)
	_, err := producer.engine.Push(ctx, "")
	require.NoError(t, err)

	consumer := newHarness(t, srv)
	report, err := consumer.engine.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.Created)

	g, err := consumer.store.GetGeneration("v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, g.Sync.Status)
	assert.NotEmpty(t, g.Sync.RemoteID)

	_, err = consumer.store.GetEvolution("v1.0.0-rc.1")
	require.NoError(t, err)

	lastPull, err := consumer.store.GetMeta(store.MetaLastPullAt)
	require.NoError(t, err)
	assert.NotEmpty(t, lastPull)
}

func TestPullIsIdempotent(t *testing.T) {
	srv := newAuthority(t)
	ctx := context.Background()

	producer := newHarness(t, srv)
	seedLocal(t, producer.store, "v1.0.0")
	_, err := producer.engine.Push(ctx, "")
	require.NoError(t, err)

	consumer := newHarness(t, srv)
	_, err = consumer.engine.Pull(ctx)
	require.NoError(t, err)

	report, err := consumer.engine.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)

	all, err := consumer.store.ListGenerations()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPullVersionIdentityConflict(t *testing.T) {
	srv := newAuthority(t)
	ctx := context.Background()

	producer := newHarness(t, srv)
	seedLocal(t, producer.store, "v1.0.0")
	_, err := producer.engine.Push(ctx, "")
	require.NoError(t, err)

	// Consumer independently created the same version.
	consumer := newHarness(t, srv)
	local := seedLocal(t, consumer.store, "v1.0.0")
	local.Description = "local work"
	require.NoError(t, consumer.store.SaveGeneration(local))

	report, err := consumer.engine.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	require.Len(t, report.Items, 1)
	assert.Contains(t, report.Items[0].Detail, "no remote identity")

	// The local record is flagged, never overwritten.
	after, err := consumer.store.GetGeneration("v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.SyncConflict, after.Sync.Status)
	assert.Equal(t, "local work", after.Description)
	assert.Empty(t, after.Sync.RemoteID)
}

func TestPullNeverDeletesLocalOnly(t *testing.T) {
	srv := newAuthority(t)
	h := newHarness(t, srv)
	ctx := context.Background()

	seedLocal(t, h.store, "v3.0.0")

	report, err := h.engine.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	_, err = h.store.GetGeneration("v3.0.0")
	require.NoError(t, err)
}

func TestConflictedRecordsAreNeverPushed(t *testing.T) {
	srv := newAuthority(t)
	h := newHarness(t, srv)
	ctx := context.Background()

	g := seedLocal(t, h.store, "v1.0.0")
	g.Sync.Status = model.SyncConflict
	require.NoError(t, h.store.SaveGeneration(g))

	report, err := h.engine.Push(ctx, "")
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, OutcomeSkipped, report.Items[0].Outcome)

	_, err = h.client.GetGenerationByVersion(ctx, "v1.0.0")
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	srv := newAuthority(t)
	ctx := context.Background()

	producer := newHarness(t, srv)
	seedLocal(t, producer.store, "v1.0.0")
	seedLocal(t, producer.store, "v2.0.0")
	_, err := producer.engine.Push(ctx, "")
	require.NoError(t, err)

	h := newHarness(t, srv)
	_, err = h.engine.Pull(ctx)
	require.NoError(t, err)

	// Mutate one synced record and add a local-only one.
	g, err := h.store.GetGeneration("v1.0.0")
	require.NoError(t, err)
	g.Description = "local edit"
	g.Sync.MarkDirty()
	require.NoError(t, h.store.SaveGeneration(g))
	seedLocal(t, h.store, "v3.0.0")

	report, err := h.engine.Status(ctx)
	require.NoError(t, err)

	states := make(map[string]StatusState)
	for _, item := range report.Items {
		if item.Kind == "generation" {
			states[item.Key] = item.State
		}
	}
	assert.Equal(t, StatePending, states["v1.0.0"])
	assert.Equal(t, StateSynced, states["v2.0.0"])
	assert.Equal(t, StateLocalOnly, states["v3.0.0"])

	// Status is read-only on both sides.
	after, err := h.store.GetGeneration("v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.SyncNotSynced, after.Sync.Status)
}

func TestStatusReportsRemoteOnly(t *testing.T) {
	srv := newAuthority(t)
	ctx := context.Background()

	producer := newHarness(t, srv)
	seedLocal(t, producer.store, "v1.0.0")
	_, err := producer.engine.Push(ctx, "")
	require.NoError(t, err)

	h := newHarness(t, srv)
	report, err := h.engine.Status(ctx)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, StateRemoteOnly, report.Items[0].State)
}

func TestPushRespectsContextCancellation(t *testing.T) {
	srv := newAuthority(t)
	h := newHarness(t, srv)

	seedLocal(t, h.store, "v1.0.0")
	seedLocal(t, h.store, "v2.0.0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.engine.Push(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Items)
}

// observingClient records the locally persisted sync status at the
// moment each create hits the wire.
type observingClient struct {
	remote.Client
	st        *store.Store
	genStatus model.SyncStatus
	evoStatus model.SyncStatus
}

func (c *observingClient) GetGenerationByVersion(ctx context.Context, version string) (*remote.Generation, error) {
	return nil, errclass.ErrRemoteNotFound
}

func (c *observingClient) CreateGeneration(ctx context.Context, g *remote.Generation) (*remote.Generation, error) {
	local, err := c.st.GetGeneration(g.Version)
	if err != nil {
		return nil, err
	}
	c.genStatus = local.Sync.Status
	out := *g
	out.ID = "auth-gen-1"
	return &out, nil
}

func (c *observingClient) CreateEvolution(ctx context.Context, e *remote.Evolution) (*remote.Evolution, error) {
	local, err := c.st.GetEvolution(e.Tag)
	if err != nil {
		return nil, err
	}
	c.evoStatus = local.Sync.Status
	out := *e
	out.ID = "auth-evo-1"
	return &out, nil
}

func TestPushPersistsSyncingStateMidFlight(t *testing.T) {
	st, err := store.Init(t.TempDir())
	require.NoError(t, err)
	obs := &observingClient{st: st}
	eng := NewEngine(st, obs, audit.NewFileAppender(st.AuditLogPath()), "tester")

	seedLocal(t, st, "v1.0.0")
	seedLocalEvolution(t, st, "v1.0.0", 1)

	report, err := eng.Push(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, report.Clean())

	// While the create was in flight the store held the transient
	// syncing state, so a crash there leaves a visible trace.
	assert.Equal(t, model.SyncSyncing, obs.genStatus)
	assert.Equal(t, model.SyncSyncing, obs.evoStatus)

	g, err := st.GetGeneration("v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, g.Sync.Status)
	ev, err := st.GetEvolution("v1.0.0-rc.1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, ev.Sync.Status)
}

func TestInterruptedPushReadsAsPending(t *testing.T) {
	srv := newAuthority(t)
	h := newHarness(t, srv)

	g := seedLocal(t, h.store, "v1.0.0")
	g.Sync.Status = model.SyncSyncing
	require.NoError(t, h.store.SaveGeneration(g))

	report, err := h.engine.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, StatePending, report.Items[0].State)
}

func TestPullConflictDetailNamesDivergentIdentity(t *testing.T) {
	srv := newAuthority(t)
	ctx := context.Background()

	producer := newHarness(t, srv)
	seedLocal(t, producer.store, "v1.0.0")
	_, err := producer.engine.Push(ctx, "")
	require.NoError(t, err)

	// The consumer's record claims the version under an identity the
	// authority does not know.
	consumer := newHarness(t, srv)
	local := seedLocal(t, consumer.store, "v1.0.0")
	local.Sync.RemoteID = "stale-remote-id"
	require.NoError(t, consumer.store.SaveGeneration(local))

	report, err := consumer.engine.Pull(ctx)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, OutcomeConflict, report.Items[0].Outcome)
	assert.Contains(t, report.Items[0].Detail, "different remote identity")
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	event     string
	signature string
	body      []byte
}

func newHookServer(t *testing.T, status int) (*httptest.Server, *[]received) {
	t.Helper()
	var got []received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, received{
			event:     r.Header.Get("X-Gryt-Event"),
			signature: r.Header.Get("X-Gryt-Signature"),
			body:      body,
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func testClient(cfg Config) *Client {
	c := NewClient(cfg)
	c.retryDelay = time.Millisecond
	return c
}

func TestSendDeliversToSubscribedHooks(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)

	c := testClient(Config{
		Enabled: true,
		Hooks: []HookConfig{{
			URL:     srv.URL,
			Events:  []EventType{EventGenerationPromoted},
			Enabled: true,
		}},
	})

	err := c.SendGenerationPromoted("v1.2.0", "alice", false)
	require.NoError(t, err)

	require.Len(t, *got, 1)
	assert.Equal(t, "generation.promoted", (*got)[0].event)

	var event Event
	require.NoError(t, json.Unmarshal((*got)[0].body, &event))
	assert.Equal(t, "v1.2.0", event.Version)
	assert.Equal(t, "alice", event.Actor)
	assert.NotEmpty(t, event.Timestamp)
}

func TestSendSkipsUnsubscribedAndDisabledHooks(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)

	c := testClient(Config{
		Enabled: true,
		Hooks: []HookConfig{
			{URL: srv.URL, Events: []EventType{EventStoreRolledBack}, Enabled: true},
			{URL: srv.URL, Events: []EventType{"*"}, Enabled: false},
		},
	})

	require.NoError(t, c.SendGenerationPromoted("v1.0.0", "alice", false))
	assert.Empty(t, *got)
}

func TestSendWildcardSubscription(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)

	c := testClient(Config{
		Enabled: true,
		Hooks:   []HookConfig{{URL: srv.URL, Events: []EventType{"*"}, Enabled: true}},
	})

	require.NoError(t, c.SendEvolutionCompleted("v1.0.0", "v1.0.0-rc.1", "pass", "bob"))
	require.NoError(t, c.SendStoreRolledBack("snap-1", "snap-2", "bob"))

	require.Len(t, *got, 2)
	assert.Equal(t, "evolution.completed", (*got)[0].event)
	assert.Equal(t, "store.rolled_back", (*got)[1].event)
}

func TestSendDisabledConfigIsNoop(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)

	c := testClient(Config{
		Enabled: false,
		Hooks:   []HookConfig{{URL: srv.URL, Events: []EventType{"*"}, Enabled: true}},
	})

	require.NoError(t, c.SendGenerationPromoted("v1.0.0", "alice", false))
	assert.Empty(t, *got)
}

func TestSendSignsPayload(t *testing.T) {
	srv, got := newHookServer(t, http.StatusOK)

	c := testClient(Config{
		Enabled: true,
		Hooks: []HookConfig{{
			URL:     srv.URL,
			Secret:  "s3cret",
			Events:  []EventType{"*"},
			Enabled: true,
		}},
	})

	require.NoError(t, c.SendGenerationPromoted("v1.0.0", "alice", true))
	require.Len(t, *got, 1)

	assert.Equal(t, "hotfix.promoted", (*got)[0].event)
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write((*got)[0].body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, (*got)[0].signature)
}

func TestSendRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(Config{
		Enabled:    true,
		MaxRetries: 3,
		Hooks:      []HookConfig{{URL: srv.URL, Events: []EventType{"*"}, Enabled: true}},
	})

	require.NoError(t, c.SendGenerationPromoted("v1.0.0", "alice", false))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendReportsExhaustedRetries(t *testing.T) {
	srv, _ := newHookServer(t, http.StatusBadGateway)

	c := testClient(Config{
		Enabled:    true,
		MaxRetries: 1,
		Hooks:      []HookConfig{{URL: srv.URL, Events: []EventType{"*"}, Enabled: true}},
	})

	err := c.SendGenerationPromoted("v1.0.0", "alice", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")
}

func TestOneFailingHookDoesNotBlockOthers(t *testing.T) {
	okSrv, okGot := newHookServer(t, http.StatusOK)
	badSrv, _ := newHookServer(t, http.StatusInternalServerError)

	c := testClient(Config{
		Enabled: true,
		Hooks: []HookConfig{
			{URL: badSrv.URL, Events: []EventType{"*"}, Enabled: true},
			{URL: okSrv.URL, Events: []EventType{"*"}, Enabled: true},
		},
	})

	err := c.SendGenerationPromoted("v1.0.0", "alice", false)
	require.Error(t, err)
	assert.Len(t, *okGot, 1)
}

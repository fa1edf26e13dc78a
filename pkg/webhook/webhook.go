// Package webhook notifies external systems about release lifecycle
// events over HTTP.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EventType identifies the lifecycle event that triggered a hook.
type EventType string

const (
	EventGenerationPromoted EventType = "generation.promoted"
	EventHotfixPromoted     EventType = "hotfix.promoted"
	EventEvolutionCompleted EventType = "evolution.completed"
	EventStoreRolledBack    EventType = "store.rolled_back"
)

// Event is the payload delivered to every matching hook.
type Event struct {
	Event      EventType      `json:"event"`
	Timestamp  string         `json:"timestamp"`
	Version    string         `json:"version,omitempty"`
	Tag        string         `json:"tag,omitempty"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// HookConfig is a single endpoint subscription. An events entry of "*"
// matches everything.
type HookConfig struct {
	URL     string      `yaml:"url" json:"url"`
	Secret  string      `yaml:"secret,omitempty" json:"secret,omitempty"`
	Events  []EventType `yaml:"events" json:"events"`
	Enabled bool        `yaml:"enabled" json:"enabled"`
}

// Config is the webhook section of the repository config.
type Config struct {
	Enabled    bool         `yaml:"enabled" json:"enabled"`
	Hooks      []HookConfig `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	MaxRetries int          `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RetryDelay string       `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
}

// Client delivers events to configured hooks. Delivery is synchronous
// with bounded retries; gryt commands are short-lived processes.
type Client struct {
	cfg        Config
	http       *http.Client
	retryDelay time.Duration
	now        func() time.Time
}

// NewClient builds a delivery client from config.
func NewClient(cfg Config) *Client {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	cfg.MaxRetries = retries

	delay := 2 * time.Second
	if cfg.RetryDelay != "" {
		if d, err := time.ParseDuration(cfg.RetryDelay); err == nil && d > 0 {
			delay = d
		}
	}

	return &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: 15 * time.Second},
		retryDelay: delay,
		now:        time.Now,
	}
}

// Send delivers the event to every enabled hook subscribed to its
// type. Failures from one hook do not stop delivery to the others; the
// last failure is returned.
func (c *Client) Send(event Event) error {
	if !c.cfg.Enabled {
		return nil
	}
	if event.Timestamp == "" {
		event.Timestamp = c.now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for _, hook := range c.cfg.Hooks {
		if !hook.Enabled || !subscribed(hook, event.Event) {
			continue
		}
		if err := c.deliver(hook, event.Event, payload); err != nil {
			lastErr = fmt.Errorf("webhook %s: %w", hook.URL, err)
		}
	}
	return lastErr
}

func (c *Client) deliver(hook HookConfig, event EventType, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.retryDelay)
		}

		req, err := http.NewRequest(http.MethodPost, hook.URL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "gryt-webhook/1.0")
		req.Header.Set("X-Gryt-Event", string(event))
		if hook.Secret != "" {
			req.Header.Set("X-Gryt-Signature", sign(payload, hook.Secret))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return lastErr
}

// sign computes the HMAC-SHA256 signature receivers verify against.
func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func subscribed(hook HookConfig, event EventType) bool {
	for _, e := range hook.Events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}

// SendGenerationPromoted reports a promotion. Hotfix promotions go out
// under their own event type.
func (c *Client) SendGenerationPromoted(version, actor string, hotfix bool) error {
	event := EventGenerationPromoted
	if hotfix {
		event = EventHotfixPromoted
	}
	return c.Send(Event{Event: event, Version: version, Actor: actor})
}

// SendEvolutionCompleted reports a terminal evolution outcome.
func (c *Client) SendEvolutionCompleted(version, tag, status, actor string) error {
	return c.Send(Event{
		Event:    EventEvolutionCompleted,
		Version:  version,
		Tag:      tag,
		Actor:    actor,
		Metadata: map[string]any{"status": status},
	})
}

// SendStoreRolledBack reports a store rollback.
func (c *Client) SendStoreRolledBack(snapshotID, backupID, actor string) error {
	return c.Send(Event{
		Event:      EventStoreRolledBack,
		SnapshotID: snapshotID,
		Actor:      actor,
		Metadata:   map[string]any{"backup_id": backupID},
	})
}

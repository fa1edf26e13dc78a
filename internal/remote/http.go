package remote

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/errclass"
)

const defaultTimeout = 30 * time.Second

// HTTPClient is the Client implementation over the remote authority's
// REST API.
type HTTPClient struct {
	baseURL string
	cfg     config.RemoteConfig
	http    *http.Client

	// now is swappable for tests so HMAC timestamps are deterministic.
	now func() time.Time
}

// NewHTTPClient creates a client for the remote authority described by
// the config.
func NewHTTPClient(cfg config.RemoteConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote URL is not configured")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parse remote URL: %w", err)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		cfg:     cfg,
		http:    &http.Client{Timeout: defaultTimeout},
		now:     time.Now,
	}, nil
}

func (c *HTTPClient) ListGenerations(ctx context.Context) ([]*Generation, error) {
	var out []*Generation
	if err := c.do(ctx, http.MethodGet, "/api/v1/generations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetGenerationByVersion(ctx context.Context, version string) (*Generation, error) {
	var out Generation
	path := "/api/v1/generations/version/" + url.PathEscape(version)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateGeneration(ctx context.Context, g *Generation) (*Generation, error) {
	var out Generation
	if err := c.do(ctx, http.MethodPost, "/api/v1/generations", g, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateGeneration(ctx context.Context, g *Generation) (*Generation, error) {
	var out Generation
	path := "/api/v1/generations/" + url.PathEscape(g.ID)
	if err := c.do(ctx, http.MethodPut, path, g, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListEvolutions(ctx context.Context) ([]*Evolution, error) {
	var out []*Evolution
	if err := c.do(ctx, http.MethodGet, "/api/v1/evolutions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateEvolution(ctx context.Context, e *Evolution) (*Evolution, error) {
	var out Evolution
	if err := c.do(ctx, http.MethodPost, "/api/v1/evolutions", e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateEvolution(ctx context.Context, e *Evolution) (*Evolution, error) {
	var out Evolution
	path := "/api/v1/evolutions/" + url.PathEscape(e.ID)
	if err := c.do(ctx, http.MethodPut, path, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, method, path, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return errclass.ErrRemoteUnreachable.WithMessagef("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errclass.ErrRemoteUnreachable.WithMessagef("read response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errclass.ErrRemoteNotFound.WithMessagef("%s %s", method, path)
	case resp.StatusCode == http.StatusConflict:
		return errclass.ErrVersionConflict.WithMessagef("%s %s: %s", method, path, apiError(respBody))
	case resp.StatusCode >= 400:
		return fmt.Errorf("remote returned %d for %s %s: %s", resp.StatusCode, method, path, apiError(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// authorize signs the request. API keys take precedence over basic
// auth; the signature covers method, path, timestamp, and body digest
// so a captured request cannot be replayed against another resource.
func (c *HTTPClient) authorize(req *http.Request, method, path string, body []byte) {
	if c.cfg.APIKeyID != "" && c.cfg.APIKeySecret != "" {
		ts := strconv.FormatInt(c.now().UTC().Unix(), 10)
		digest := sha256.Sum256(body)
		payload := strings.Join([]string{method, path, ts, hex.EncodeToString(digest[:])}, "\n")
		mac := hmac.New(sha256.New, []byte(c.cfg.APIKeySecret))
		mac.Write([]byte(payload))
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("Authorization", fmt.Sprintf("HMAC %s:%s:%s", c.cfg.APIKeyID, ts, sig))
		return
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}

func apiError(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}

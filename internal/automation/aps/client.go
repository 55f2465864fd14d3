// Package aps talks to Autodesk Platform Services: OSS for file storage and
// Design Automation for remote processing. Authentication is two-legged
// OAuth (client credentials).
package aps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"tga-backend/internal/automation"
)

// DefaultBaseURL is the public APS endpoint.
const DefaultBaseURL = "https://developer.api.autodesk.com"

var scopes = []string{"data:read", "data:write", "data:create", "bucket:create", "bucket:read", "code:all"}

// Config configures a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	BucketKey    string
	ActivityID   string
	BaseURL      string
	// Region selects the Design Automation deployment, e.g. "us-east".
	Region  string
	Timeout time.Duration
	// HTTPClient is used for token requests and signed URL transfers.
	HTTPClient *http.Client
}

// Client implements automation.FileStore and automation.RemoteJobs.
type Client struct {
	cfg    Config
	tokens oauth2.TokenSource
	api    *http.Client
	raw    *http.Client
}

// New constructs a Client. Tokens are fetched lazily and cached until expiry.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("APS_CLIENT_ID and APS_CLIENT_SECRET are required")
	}
	if strings.TrimSpace(cfg.ActivityID) == "" {
		return nil, fmt.Errorf("APS_ACTIVITY_ID is required")
	}
	if strings.TrimSpace(cfg.BucketKey) == "" {
		return nil, fmt.Errorf("APS_BUCKET_KEY is required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Region == "" {
		cfg.Region = "us-east"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	raw := cfg.HTTPClient
	if raw == nil {
		raw = &http.Client{Timeout: cfg.Timeout}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/authentication/v2/token",
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, raw)
	tokens := cc.TokenSource(ctx)

	api := oauth2.NewClient(ctx, tokens)
	api.Timeout = cfg.Timeout

	return &Client{cfg: cfg, tokens: tokens, api: api, raw: raw}, nil
}

// APIError is a non-2xx response from APS.
type APIError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aps %s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (c *Client) doJSON(ctx context.Context, method, url string, in, out any, okStatus ...int) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		return 0, fmt.Errorf("aps %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if !statusOK(resp.StatusCode, okStatus) {
		apiErr := &APIError{Method: method, URL: url, Status: resp.StatusCode, Body: truncate(string(data), 512)}
		if resp.StatusCode == http.StatusNotFound {
			return resp.StatusCode, fmt.Errorf("%w: %v", automation.ErrNotFound, apiErr)
		}
		return resp.StatusCode, apiErr
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("aps response parse: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func statusOK(status int, extra []int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	for _, s := range extra {
		if status == s {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var (
	_ automation.FileStore  = (*Client)(nil)
	_ automation.RemoteJobs = (*Client)(nil)
)

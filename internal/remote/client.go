// Package remote provides the HTTP client for the authoritative praxis
// service.
//
// Every operation is expected to be safely repeatable from the client's
// perspective: the sync engine delivers queued mutations at least once, so
// a retried save must converge to the same remote state rather than
// duplicating. The server keys each operation by (user, entity, id) to make
// that hold.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// API is the remote surface the sync engine replays queued mutations
// against, one method per (entity kind, operation) pair.
type API interface {
	// SaveClient creates or updates a client, keyed by (userId, clientId).
	SaveClient(ctx context.Context, userID, clientID string, payload json.RawMessage) error
	// DeleteClient removes a client, keyed by (userId, clientId).
	DeleteClient(ctx context.Context, userID, clientID string) error

	// SaveProgram creates a program for a user.
	SaveProgram(ctx context.Context, userID string, payload json.RawMessage) error
	// UpdateProgram updates a program, keyed by (userId, programId).
	UpdateProgram(ctx context.Context, userID, programID string, payload json.RawMessage) error
	// DeleteProgram removes a program, keyed by (userId, programId, clientId).
	DeleteProgram(ctx context.Context, userID, programID, clientID string) error

	// SaveSession creates or updates a session, keyed by (userId, sessionId).
	SaveSession(ctx context.Context, userID, sessionID string, payload json.RawMessage) error

	// SaveStimulus creates a stimulus under a program.
	SaveStimulus(ctx context.Context, userID, programID string, payload json.RawMessage) error
	// DeleteStimulus removes a stimulus, keyed by (userId, programId, stimulusId).
	DeleteStimulus(ctx context.Context, userID, programID, stimulusID string) error
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the root of the remote service, e.g. "https://api.example.com".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds each remote call. A call that exceeds it fails rather
	// than hanging the drain pass (default: 30s).
	Timeout time.Duration
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a remote client from config.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Healthy reports whether the remote service answers its health endpoint.
// Used by the connectivity monitor as the online/offline probe.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// SaveClient implements API.SaveClient.
func (c *Client) SaveClient(ctx context.Context, userID, clientID string, payload json.RawMessage) error {
	path := fmt.Sprintf("/api/v1/users/%s/clients/%s", url.PathEscape(userID), url.PathEscape(clientID))
	return c.do(ctx, http.MethodPut, path, payload)
}

// DeleteClient implements API.DeleteClient.
func (c *Client) DeleteClient(ctx context.Context, userID, clientID string) error {
	path := fmt.Sprintf("/api/v1/users/%s/clients/%s", url.PathEscape(userID), url.PathEscape(clientID))
	return c.do(ctx, http.MethodDelete, path, nil)
}

// SaveProgram implements API.SaveProgram.
func (c *Client) SaveProgram(ctx context.Context, userID string, payload json.RawMessage) error {
	path := fmt.Sprintf("/api/v1/users/%s/programs", url.PathEscape(userID))
	return c.do(ctx, http.MethodPost, path, payload)
}

// UpdateProgram implements API.UpdateProgram.
func (c *Client) UpdateProgram(ctx context.Context, userID, programID string, payload json.RawMessage) error {
	path := fmt.Sprintf("/api/v1/users/%s/programs/%s", url.PathEscape(userID), url.PathEscape(programID))
	return c.do(ctx, http.MethodPut, path, payload)
}

// DeleteProgram implements API.DeleteProgram.
func (c *Client) DeleteProgram(ctx context.Context, userID, programID, clientID string) error {
	path := fmt.Sprintf("/api/v1/users/%s/clients/%s/programs/%s",
		url.PathEscape(userID), url.PathEscape(clientID), url.PathEscape(programID))
	return c.do(ctx, http.MethodDelete, path, nil)
}

// SaveSession implements API.SaveSession.
func (c *Client) SaveSession(ctx context.Context, userID, sessionID string, payload json.RawMessage) error {
	path := fmt.Sprintf("/api/v1/users/%s/sessions/%s", url.PathEscape(userID), url.PathEscape(sessionID))
	return c.do(ctx, http.MethodPut, path, payload)
}

// SaveStimulus implements API.SaveStimulus.
func (c *Client) SaveStimulus(ctx context.Context, userID, programID string, payload json.RawMessage) error {
	path := fmt.Sprintf("/api/v1/users/%s/programs/%s/stimuli",
		url.PathEscape(userID), url.PathEscape(programID))
	return c.do(ctx, http.MethodPost, path, payload)
}

// DeleteStimulus implements API.DeleteStimulus.
func (c *Client) DeleteStimulus(ctx context.Context, userID, programID, stimulusID string) error {
	path := fmt.Sprintf("/api/v1/users/%s/programs/%s/stimuli/%s",
		url.PathEscape(userID), url.PathEscape(programID), url.PathEscape(stimulusID))
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do executes one HTTP call. Any non-2xx status or transport error is
// returned as a plain error; the sync engine records it on the queue item
// and retries on a later pass.
func (c *Client) do(ctx context.Context, method, path string, body json.RawMessage) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a short excerpt for the queue item's error message.
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: remote returned %d: %s", method, path, resp.StatusCode, excerpt)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

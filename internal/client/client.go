// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package client talks to a running sqlgate server over its REST endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sqlgate/server/internal/api"
	"sqlgate/server/internal/policy"
)

// DefaultTimeout bounds a single request when no timeout is given.
const DefaultTimeout = 60 * time.Second

// HTTP implements the sqlgate API client.
type HTTP struct {
	// baseURL is the server root, e.g. "http://localhost:8080"
	baseURL string
	// client is the underlying HTTP client with configured timeout
	client *http.Client
	// userAgent identifies the CLI build to the server
	userAgent string
}

// New creates a client for baseURL. A non-positive timeout uses DefaultTimeout.
func New(baseURL, version string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		userAgent: "sqlgate-cli/" + version,
	}
}

// Error is a non-2xx answer from the server. Body is the decoded error
// envelope when the server sent one.
type Error struct {
	StatusCode int
	Body       api.ErrorResponse
}

func (e *Error) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Body.Kind, e.Body.Message)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Query calls POST /<role>/query with the role's API key.
func (h *HTTP) Query(ctx context.Context, role policy.Role, apiKey, sql string) (*api.QueryResponse, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	body, err := json.Marshal(api.QueryRequest{SQL: sql})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/"+string(role)+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	h.setStandardHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out api.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return &out, nil
}

// Health calls GET /healthz and returns the reported status.
func (h *HTTP) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/healthz", nil)
	if err != nil {
		return "", err
	}
	h.setStandardHeaders(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return out.Status, &Error{StatusCode: resp.StatusCode}
	}
	return out.Status, nil
}

func (h *HTTP) setStandardHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	e := &Error{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(b, &e.Body); err != nil || e.Body.Status == "" {
		e.Body = api.ErrorResponse{Message: strings.TrimSpace(string(b))}
	}
	return e
}

// Package remote talks to the Fine Print cloud API. It is the only place
// that knows cloud endpoints and auth; everything else works through the
// AnalysisClient and MutationClient interfaces.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// AnalysisRequest is a document submitted for cloud analysis.
type AnalysisRequest struct {
	DocumentID   string `json:"documentId"`
	FileName     string `json:"fileName"`
	MimeType     string `json:"mimeType"`
	Content      string `json:"content"`
	Priority     string `json:"priority,omitempty"`
	AnalysisType string `json:"analysisType,omitempty"`
	DeepScan     bool   `json:"deepScan,omitempty"`
	CompareMode  bool   `json:"compareMode,omitempty"`
}

// AnalysisClient submits documents for analysis.
type AnalysisClient interface {
	SubmitAnalysis(ctx context.Context, req AnalysisRequest) (json.RawMessage, error)
}

// MutationClient replays buffered mutations.
type MutationClient interface {
	Apply(ctx context.Context, kind, action string, payload json.RawMessage) error
}

// Client is the HTTP implementation of the cloud API clients.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given API base URL. A non-empty token
// is attached to every request as a bearer credential.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := &http.Client{Timeout: timeout}
	if token != "" {
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// SubmitAnalysis posts a document to the cloud analysis endpoint and
// returns the raw analysis result.
func (c *Client) SubmitAnalysis(ctx context.Context, req AnalysisRequest) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/analyses", req)
	if err != nil {
		return nil, fmt.Errorf("submit analysis document=%s: %w", req.DocumentID, err)
	}
	return body, nil
}

// Apply replays one buffered mutation against the cloud API. Update and
// delete operations address the resource named by the payload's id field.
func (c *Client) Apply(ctx context.Context, kind, action string, payload json.RawMessage) error {
	resource, ok := resourcePaths[kind]
	if !ok {
		return &RequestError{Reason: fmt.Sprintf("unknown operation kind: %s", kind)}
	}

	var method, path string
	switch action {
	case "create":
		method, path = http.MethodPost, resource
	case "update", "delete":
		id := payloadID(payload)
		if id == "" {
			return &RequestError{Reason: fmt.Sprintf("%s %s operation has no id", kind, action)}
		}
		path = resource + "/" + id
		method = http.MethodPut
		if action == "delete" {
			method = http.MethodDelete
		}
	default:
		return &RequestError{Reason: fmt.Sprintf("unknown operation action: %s", action)}
	}

	var body any
	if action != "delete" && len(payload) > 0 {
		body = payload
	}
	if _, err := c.do(ctx, method, path, body); err != nil {
		return fmt.Errorf("apply %s %s: %w", kind, action, err)
	}
	return nil
}

// Ping checks the cloud health endpoint and reports round-trip time.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.do(ctx, http.MethodGet, "/health", nil); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

var resourcePaths = map[string]string{
	"analysis":     "/api/v1/analyses",
	"notification": "/api/v1/notifications",
	"preference":   "/api/v1/preferences",
	"user_data":    "/api/v1/user-data",
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func payloadID(payload json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.ID
}

var (
	_ AnalysisClient = (*Client)(nil)
	_ MutationClient = (*Client)(nil)
)

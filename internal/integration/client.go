// Package integration is an HTTP client of the service.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// NewClient returns a client of the service described by cfg.
func NewClient(cfg *Config) (*Client, error) {
	rt, err := newTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable create client transport: %w", err)
	}
	return &Client{client: &http.Client{Transport: rt, Timeout: cfg.RequestTimeout}}, nil
}

type Client struct {
	client *http.Client
}

// StatusError is returned for every non 200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (c *Client) Collect(ctx context.Context, r CollectRequest) (*CollectResponse, error) {
	var resp CollectResponse
	if err := c.do(ctx, http.MethodPost, "/collect", &r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Query(ctx context.Context, r QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/query", &r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Clusters(ctx context.Context, entityID string) (*ClustersResponse, error) {
	var resp ClustersResponse
	path := "/clusters?entity=" + url.QueryEscape(entityID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("create new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error with sending request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

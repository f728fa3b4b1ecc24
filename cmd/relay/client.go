package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// apiClient is a thin JSON client for the relay daemon's HTTP API, used by
// the CLI subcommands.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient builds a client for the configured listen address. The
// RELAY_API env var overrides the config, which lets tests point the CLI at
// an httptest server.
func newAPIClient(cfg Config) *apiClient {
	base := "http://" + cfg.Listen
	if v := os.Getenv("RELAY_API"); v != "" {
		base = v
	}
	return &apiClient{
		baseURL: base,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// get fetches path and decodes the JSON response into out.
func (c *apiClient) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("is the relay daemon running? %w", err)
	}
	return c.finish(resp, out)
}

// post sends body as JSON to path and decodes the response into out. A nil
// out discards the response body.
func (c *apiClient) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("is the relay daemon running? %w", err)
	}
	return c.finish(resp, out)
}

// del issues a DELETE to path and decodes the response into out.
func (c *apiClient) del(path string, out any) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the relay daemon running? %w", err)
	}
	return c.finish(resp, out)
}

// finish checks the status code and decodes the body.
func (c *apiClient) finish(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIClient talks to a running sigsift daemon over its admin API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsReachable reports whether the daemon answers at all.
func (c *APIClient) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/nodes")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *APIClient) do(method, path string, body []byte) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("daemon: %s", e.Error)
		}
		return nil, fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
	}
	return raw, nil
}

func (c *APIClient) ListNodes() (json.RawMessage, error) {
	return c.do(http.MethodGet, "/nodes", nil)
}

func (c *APIClient) GetConfig(node uint64) (json.RawMessage, error) {
	return c.do(http.MethodGet, fmt.Sprintf("/nodes/%d/config", node), nil)
}

func (c *APIClient) PutConfig(node uint64, payload []byte) (json.RawMessage, error) {
	return c.do(http.MethodPut, fmt.Sprintf("/nodes/%d/config", node), payload)
}

func (c *APIClient) CaptureTemplate(node uint64) (json.RawMessage, error) {
	return c.do(http.MethodGet, fmt.Sprintf("/nodes/%d/template", node), nil)
}

func (c *APIClient) ApplyTemplate(node uint64, payload []byte) (json.RawMessage, error) {
	return c.do(http.MethodPost, fmt.Sprintf("/nodes/%d/template", node), payload)
}

func (c *APIClient) TriggerPass() error {
	_, err := c.do(http.MethodPost, "/pass", nil)
	return err
}

func (c *APIClient) TriggerSweep() (int, error) {
	raw, err := c.do(http.MethodPost, "/sweep", nil)
	if err != nil {
		return 0, err
	}
	var r struct {
		Removed int `json:"removed"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, err
	}
	return r.Removed, nil
}

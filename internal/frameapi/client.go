// Package frameapi talks to the frame's local HTTP API.
package frameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultUploadPath = "/api/upload"
	DefaultWakePath   = "/api/wake"
	DefaultInfoPath   = "/api/info"

	wakeTimeout   = 10 * time.Second
	uploadTimeout = 30 * time.Second
	infoTimeout   = 10 * time.Second
)

// StatusError is returned for any non-2xx answer from the frame.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("frame %s: status %d: %s", e.Op, e.Code, e.Body)
}

// Endpoints are the request paths on the frame.
type Endpoints struct {
	Upload string `json:"upload"`
	Wake   string `json:"wake"`
	Info   string `json:"info"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{Upload: DefaultUploadPath, Wake: DefaultWakePath, Info: DefaultInfoPath}
}

// Client is stateless and safe for concurrent use.
type Client struct {
	baseURL   string
	endpoints Endpoints
	http      *http.Client
}

// NewClient accepts a bare host ("192.168.1.50") or a full base URL.
func NewClient(host string, endpoints Endpoints) *Client {
	base := strings.TrimSuffix(strings.TrimSpace(host), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	defaults := DefaultEndpoints()
	if endpoints.Upload == "" {
		endpoints.Upload = defaults.Upload
	}
	if endpoints.Wake == "" {
		endpoints.Wake = defaults.Wake
	}
	if endpoints.Info == "" {
		endpoints.Info = defaults.Info
	}
	// per-request timeouts come from the context
	return &Client{baseURL: base, endpoints: endpoints, http: &http.Client{}}
}

func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Wake asks the frame to stay awake for an upload.
func (c *Client) Wake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, wakeTimeout)
	defer cancel()
	resp, err := c.send(ctx, http.MethodPost, c.endpoints.Wake, "", nil)
	if err != nil {
		return err
	}
	return drainOK("wake", resp)
}

// Deliver uploads one encoded image.
func (c *Client) Deliver(ctx context.Context, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	if contentType == "" {
		contentType = "image/jpeg"
	}
	resp, err := c.send(ctx, http.MethodPost, c.endpoints.Upload, contentType, bytes.NewReader(body))
	if err != nil {
		return err
	}
	return drainOK("upload", resp)
}

// Info returns the frame's self-description.
func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, infoTimeout)
	defer cancel()
	resp, err := c.send(ctx, http.MethodGet, c.endpoints.Info, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("info", resp)
	}
	info := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode frame info: %w", err)
	}
	return info, nil
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("frame %s %s: %w", method, path, err)
	}
	return resp, nil
}

func drainOK(op string, resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

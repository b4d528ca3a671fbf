package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrEntityNotFound = errors.New("entity not found")

// StatusError is returned when Home Assistant answers with a non-2xx code.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Body)
}

// EntityState is the subset of a state object the add-on reads.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
}

// Client talks to the Home Assistant core REST API through the supervisor
// proxy or a direct base URL.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://supervisor/core"
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL is used by the watcher to derive the websocket endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// State fetches one entity's current state.
func (c *Client) State(ctx context.Context, entityID string) (EntityState, error) {
	var out EntityState
	err := c.do(ctx, http.MethodGet, "/api/states/"+entityID, nil, &out)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return EntityState{}, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	return out, err
}

// PresenceState returns the raw state string of a person or tracker entity.
func (c *Client) PresenceState(ctx context.Context, entityID string) (string, error) {
	state, err := c.State(ctx, entityID)
	if err != nil {
		return "", err
	}
	return state.State, nil
}

type serviceDomain struct {
	Domain   string                     `json:"domain"`
	Services map[string]json.RawMessage `json:"services"`
}

// HasService reports whether domain.service is currently registered.
func (c *Client) HasService(ctx context.Context, domain, service string) (bool, error) {
	var domains []serviceDomain
	if err := c.do(ctx, http.MethodGet, "/api/services", nil, &domains); err != nil {
		return false, err
	}
	for _, d := range domains {
		if d.Domain != domain {
			continue
		}
		_, ok := d.Services[service]
		return ok, nil
	}
	return false, nil
}

// CallService invokes domain.service with data as the service payload.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, "/api/services/"+domain+"/"+service, data, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &StatusError{Op: method + " " + path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

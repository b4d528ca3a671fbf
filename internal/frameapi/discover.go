package frameapi

import (
	"context"
	"net/http"
	"time"
)

const probeTimeout = 3 * time.Second

var (
	uploadCandidates = []string{"/api/upload", "/upload", "/api/image", "/api/send"}
	wakeCandidates   = []string{"/api/wake", "/wake", "/api/ping", "/ping"}
	infoCandidates   = []string{"/api/info", "/info", "/api/status", "/status"}
)

// DiscoverEndpoints probes well-known paths and returns the first that
// answers for each operation. A 400 or 405 on POST paths still proves the
// route exists. Operations nothing answers for keep their defaults.
func (c *Client) DiscoverEndpoints(ctx context.Context) Endpoints {
	found := DefaultEndpoints()
	postOK := map[int]bool{http.StatusOK: true, http.StatusBadRequest: true, http.StatusMethodNotAllowed: true}
	getOK := map[int]bool{http.StatusOK: true}

	if path, ok := c.probe(ctx, http.MethodPost, uploadCandidates, postOK); ok {
		found.Upload = path
	}
	if path, ok := c.probe(ctx, http.MethodPost, wakeCandidates, postOK); ok {
		found.Wake = path
	}
	if path, ok := c.probe(ctx, http.MethodGet, infoCandidates, getOK); ok {
		found.Info = path
	}
	return found
}

// WithEndpoints returns a copy bound to other paths.
func (c *Client) WithEndpoints(endpoints Endpoints) *Client {
	return NewClient(c.baseURL, endpoints)
}

func (c *Client) probe(ctx context.Context, method string, candidates []string, accept map[int]bool) (string, bool) {
	for _, path := range candidates {
		if ctx.Err() != nil {
			return "", false
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		resp, err := c.send(probeCtx, method, path, "", nil)
		if err == nil {
			resp.Body.Close()
		}
		cancel()
		if err == nil && accept[resp.StatusCode] {
			return path, true
		}
	}
	return "", false
}

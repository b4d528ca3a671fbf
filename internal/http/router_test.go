package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
	"github.com/micro-ha/bloomin-presence/internal/http/handlers"
	"github.com/micro-ha/bloomin-presence/internal/logging"
	"github.com/micro-ha/bloomin-presence/internal/pipeline"
)

type stubRunner struct {
	mu       sync.Mutex
	target   *frame.Target
	report   pipeline.Report
	err      error
	triggers []pipeline.Trigger
}

func (s *stubRunner) Run(_ context.Context, trig pipeline.Trigger) (pipeline.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = append(s.triggers, trig)
	report := s.report
	report.Trigger = trig.Kind
	return report, s.err
}

func (s *stubRunner) LastReport() (pipeline.Report, bool) {
	return s.report, s.report.Outcome != ""
}

func (s *stubRunner) Target() *frame.Target { return s.target }

type stubDiscoverer struct {
	cache frame.BLECache
	err   error
}

func (s stubDiscoverer) Discover(context.Context, *frame.Target) (frame.BLECache, error) {
	return s.cache, s.err
}

func newTestRouter(runner *stubRunner, discoverer handlers.Discoverer) http.Handler {
	api := handlers.New(runner, discoverer, logging.NewNop())
	return NewRouter(api, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	}))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUpdateDisplayStatusMapping(t *testing.T) {
	cases := []struct {
		outcome pipeline.Outcome
		err     error
		status  int
	}{
		{pipeline.OutcomeDelivered, nil, http.StatusOK},
		{pipeline.OutcomeSuppressed, nil, http.StatusOK},
		{pipeline.OutcomeNoImage, &pipeline.ResolveError{Source: "folder:x", Err: errors.New("empty")}, http.StatusNotFound},
		{pipeline.OutcomePresenceUnavailable, &pipeline.PresenceError{Err: errors.New("ha down")}, http.StatusBadGateway},
		{pipeline.OutcomeWakeFailed, &pipeline.WakeError{Err: errors.New("all failed")}, http.StatusBadGateway},
		{pipeline.OutcomeCompositeFailed, &pipeline.CompositeError{Path: "x", Err: errors.New("bad")}, http.StatusUnprocessableEntity},
		{pipeline.OutcomeDeliveryFailed, &pipeline.DeliveryError{Sink: "http", Err: errors.New("500")}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			runner := &stubRunner{target: frame.NewTarget("hall", "h", "", frame.BLECache{}), report: pipeline.Report{Outcome: tc.outcome}, err: tc.err}
			rec := do(t, newTestRouter(runner, nil), http.MethodPost, "/api/update_display", "")
			assert.Equal(t, tc.status, rec.Code)
			require.Len(t, runner.triggers, 1)
			assert.Equal(t, pipeline.TriggerUpdateDisplay, runner.triggers[0].Kind)
		})
	}
}

func TestUploadImage(t *testing.T) {
	runner := &stubRunner{target: frame.NewTarget("hall", "h", "", frame.BLECache{}), report: pipeline.Report{Outcome: pipeline.OutcomeDelivered}}
	router := newTestRouter(runner, nil)

	rec := do(t, router, http.MethodPost, "/api/upload_image", `{"image_path":"/media/x.jpg"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.triggers, 1)
	assert.Equal(t, "/media/x.jpg", runner.triggers[0].Path)

	rec = do(t, router, http.MethodPost, "/api/upload_image", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/upload_image", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, runner.triggers, 1)
}

func TestGetFrameAndIngressPrefix(t *testing.T) {
	target := frame.NewTarget("hall", "192.168.1.50", "AA:BB:CC:DD:EE:FF", frame.BLECache{ServiceUUID: "s", CharacteristicUUID: "c"})
	runner := &stubRunner{target: target, report: pipeline.Report{Outcome: pipeline.OutcomeDelivered}}

	req := httptest.NewRequest(http.MethodGet, "/api/hassio_ingress/abc/api/frame", nil)
	req.Header.Set("X-Ingress-Path", "/api/hassio_ingress/abc")
	rec := httptest.NewRecorder()
	newTestRouter(runner, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hall", body["id"])
	assert.Equal(t, true, body["ble_enabled"])
	assert.NotNil(t, body["ble_cache"])
	assert.NotNil(t, body["last_report"])
}

func TestDiscoverBLE(t *testing.T) {
	enabled := frame.NewTarget("hall", "h", "AA:BB:CC:DD:EE:FF", frame.BLECache{})
	disabled := frame.NewTarget("hall", "h", "", frame.BLECache{})
	cache := frame.BLECache{ServiceUUID: "0000ff00-0000-1000-8000-00805f9b34fb", CharacteristicUUID: "0000f001-0000-1000-8000-00805f9b34fb"}

	rec := do(t, newTestRouter(&stubRunner{target: enabled}, stubDiscoverer{cache: cache}), http.MethodPost, "/api/ble/discover", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), cache.CharacteristicUUID)

	rec = do(t, newTestRouter(&stubRunner{target: disabled}, stubDiscoverer{cache: cache}), http.MethodPost, "/api/ble/discover", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, newTestRouter(&stubRunner{target: enabled}, stubDiscoverer{err: errors.New("out of range")}), http.MethodPost, "/api/ble/discover", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(&stubRunner{target: frame.NewTarget("hall", "h", "", frame.BLECache{})}, nil)
	rec := do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

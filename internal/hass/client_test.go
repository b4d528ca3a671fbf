package hass

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/services", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"domain":"light","services":{"turn_on":{}}},
			{"domain":"eink_display","services":{"whistle":{"fields":{}}}}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	ok, err := client.HasService(context.Background(), "eink_display", "whistle")
	require.NoError(t, err)
	assert.True(t, ok, "eink_display.whistle should be registered")

	ok, err = client.HasService(context.Background(), "eink_display", "upload")
	require.NoError(t, err)
	assert.False(t, ok, "eink_display.upload should not be registered")
}

func TestCallServicePostsPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.CallService(context.Background(), "eink_display", "whistle", map[string]any{"entity_id": "eink_display.hall"})
	require.NoError(t, err)
	assert.Equal(t, "/api/services/eink_display/whistle", gotPath)
	assert.Equal(t, "eink_display.hall", gotBody["entity_id"])
}

func TestCallServiceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").CallService(context.Background(), "eink_display", "whistle", nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestStateNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/states/person.alice" {
			_, _ = w.Write([]byte(`{"entity_id":"person.alice","state":"home","attributes":{}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	state, err := client.State(context.Background(), "person.alice")
	require.NoError(t, err)
	assert.Equal(t, "home", state.State)

	_, err = client.State(context.Background(), "person.bob")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestPresenceState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states/person.alice" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"entity_id":"person.alice","state":"not_home","attributes":{}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	state, err := client.PresenceState(context.Background(), "person.alice")
	require.NoError(t, err)
	assert.Equal(t, "not_home", state)

	_, err = client.PresenceState(context.Background(), "person.bob")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

package hass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

var errAuthRejected = errors.New("websocket auth rejected")

// Watcher streams state_changed events for a fixed set of entities.
type Watcher struct {
	baseURL  string
	token    string
	entities map[string]struct{}
	logger   *slog.Logger

	dialer *websocket.Dialer
}

func NewWatcher(baseURL, token string, entities []string, logger *slog.Logger) *Watcher {
	set := make(map[string]struct{}, len(entities))
	for _, id := range entities {
		set[strings.TrimSpace(id)] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		token:    token,
		entities: set,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
	}
}

// Run keeps a session open until ctx is cancelled, reconnecting with
// exponential backoff.
func (w *Watcher) Run(ctx context.Context, onChange func(frame.PresenceChange)) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := w.runSession(ctx, onChange, func() { backoff = time.Second })
		if err != nil && ctx.Err() == nil {
			w.logger.Warn("presence event watcher disconnected", "err", err, "retry_in", backoff.String())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 20*time.Second {
			backoff *= 2
		}
	}
}

func (w *Watcher) runSession(ctx context.Context, onChange func(frame.PresenceChange), onSubscribed func()) error {
	wsURL, err := toWebsocketURL(w.baseURL + "/api/websocket")
	if err != nil {
		return err
	}
	conn, _, err := w.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var hello wsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	if hello.Type == "auth_required" {
		if err := conn.WriteJSON(map[string]any{"type": "auth", "access_token": w.token}); err != nil {
			return err
		}
		var reply wsMessage
		if err := conn.ReadJSON(&reply); err != nil {
			return err
		}
		if reply.Type != "auth_ok" {
			return fmt.Errorf("%w: %s", errAuthRejected, reply.Type)
		}
	}

	subscribe := map[string]any{"id": 1, "type": "subscribe_events", "event_type": "state_changed"}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}
	onSubscribed()
	w.logger.Info("subscribed to presence events", "entities", len(w.entities))

	for {
		if err := conn.SetReadDeadline(time.Now().Add(120 * time.Second)); err != nil {
			return err
		}
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		change, ok := w.decodeChange(msg)
		if ok {
			onChange(change)
		}
	}
}

type wsMessage struct {
	Type  string `json:"type"`
	Event struct {
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
		TimeFired time.Time      `json:"time_fired"`
	} `json:"event"`
}

type stateChangedData struct {
	EntityID string `mapstructure:"entity_id"`
	OldState *struct {
		State string `mapstructure:"state"`
	} `mapstructure:"old_state"`
	NewState *struct {
		State string `mapstructure:"state"`
	} `mapstructure:"new_state"`
}

// decodeChange keeps tracked entities whose presence actually changed.
func (w *Watcher) decodeChange(msg wsMessage) (frame.PresenceChange, bool) {
	if msg.Type != "event" || msg.Event.EventType != "state_changed" {
		return frame.PresenceChange{}, false
	}
	var data stateChangedData
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &data,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return frame.PresenceChange{}, false
	}
	if err := decoder.Decode(msg.Event.Data); err != nil {
		w.logger.Debug("skip malformed state_changed event", "err", err)
		return frame.PresenceChange{}, false
	}
	if _, tracked := w.entities[data.EntityID]; !tracked {
		return frame.PresenceChange{}, false
	}

	change := frame.PresenceChange{EntityID: data.EntityID, At: msg.Event.TimeFired.UTC()}
	if data.OldState != nil {
		change.OldState = data.OldState.State
	}
	if data.NewState != nil {
		change.NewState = data.NewState.State
	}
	if !change.Changed() {
		return frame.PresenceChange{}, false
	}
	return change, true
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}

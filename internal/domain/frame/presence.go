package frame

import (
	"strings"
	"time"
)

// PresenceState is the closed set of presence values used past the HA boundary.
type PresenceState int

const (
	// PresenceUnknown covers every state string that is neither home nor away.
	PresenceUnknown PresenceState = iota
	// PresenceHome means the tracked person is at home.
	PresenceHome
	// PresenceAway means the tracked person is away.
	PresenceAway
)

const (
	stateHome    = "home"
	stateAway    = "away"
	stateNotHome = "not_home"
)

// ParsePresence maps a raw person entity state to a PresenceState.
func ParsePresence(raw string) PresenceState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case stateHome:
		return PresenceHome
	case stateAway, stateNotHome:
		return PresenceAway
	default:
		return PresenceUnknown
	}
}

// AggregatePresence folds several person states: anyone home wins, then
// anyone away, otherwise unknown.
func AggregatePresence(states ...PresenceState) PresenceState {
	result := PresenceUnknown
	for _, s := range states {
		switch s {
		case PresenceHome:
			return PresenceHome
		case PresenceAway:
			result = PresenceAway
		}
	}
	return result
}

func (p PresenceState) String() string {
	switch p {
	case PresenceHome:
		return "home"
	case PresenceAway:
		return "away"
	default:
		return "unknown"
	}
}

// PresenceChange is one state_changed notification for a person entity.
type PresenceChange struct {
	EntityID string
	OldState string
	NewState string
	At       time.Time
}

// Changed reports whether the raw state actually moved.
func (c PresenceChange) Changed() bool {
	return c.OldState != c.NewState
}

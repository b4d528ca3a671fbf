package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrBLEDisabled indicates BLE wake is not configured for the frame.
	ErrBLEDisabled = errors.New("ble wake disabled")
	// ErrNotConfigured indicates the add-on has no frame configured yet.
	ErrNotConfigured = errors.New("frame not configured")
)

// ValidationError describes an invalid configuration value. It is fatal to
// the configuration it was raised for.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

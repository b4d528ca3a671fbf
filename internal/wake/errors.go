package wake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

var (
	ErrNoEligibleChannel  = errors.New("no wake channel eligible")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ChannelError is one channel's failure reason.
type ChannelError struct {
	Channel frame.Channel
	Err     error
}

func (e ChannelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Channel, e.Err)
}

func (e ChannelError) Unwrap() error {
	return e.Err
}

// AllFailedError carries every eligible channel's failure in attempt order.
type AllFailedError struct {
	Failures []ChannelError
}

func (e *AllFailedError) Error() string {
	if len(e.Failures) == 0 {
		return "wake failed: " + ErrNoEligibleChannel.Error()
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "wake failed on all channels: " + strings.Join(parts, "; ")
}

// Unwrap exposes the individual reasons to errors.Is / errors.As.
func (e *AllFailedError) Unwrap() []error {
	if len(e.Failures) == 0 {
		return []error{ErrNoEligibleChannel}
	}
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}

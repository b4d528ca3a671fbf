package pipeline

import "fmt"

// ResolveError aborts a run before any wake attempt.
type ResolveError struct {
	Source string
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve image %s: %v", e.Source, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// PresenceError means no configured person's state could be read, so the
// run cannot tell home from away.
type PresenceError struct {
	Err error
}

func (e *PresenceError) Error() string {
	return fmt.Sprintf("read presence: %v", e.Err)
}

func (e *PresenceError) Unwrap() error { return e.Err }

// WakeError wraps the orchestrator's aggregated failure.
type WakeError struct {
	Err error
}

func (e *WakeError) Error() string {
	return e.Err.Error()
}

func (e *WakeError) Unwrap() error { return e.Err }

// CompositeError happens after the frame is awake; nothing is delivered.
type CompositeError struct {
	Path string
	Err  error
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Err)
}

func (e *CompositeError) Unwrap() error { return e.Err }

// DeliveryError means the sink rejected or never received the image.
type DeliveryError struct {
	Sink string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

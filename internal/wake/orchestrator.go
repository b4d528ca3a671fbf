// Package wake brings a sleeping frame online through the first channel that
// works.
package wake

import (
	"context"
	"log/slog"
	"time"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

// Channel is one way of waking the frame.
type Channel interface {
	Name() frame.Channel
	// Eligible is false when the channel is disabled for this frame; the
	// orchestrator skips it without counting a failure.
	Eligible(target *frame.Target) bool
	Attempt(ctx context.Context, target *frame.Target) error
}

// Recorder receives one observation per attempted channel.
type Recorder interface {
	ObserveWakeAttempt(channel frame.Channel, ok bool, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveWakeAttempt(frame.Channel, bool, time.Duration) {}

// Orchestrator tries its channels strictly in the order given, once each.
type Orchestrator struct {
	channels []Channel
	recorder Recorder
	logger   *slog.Logger
}

func NewOrchestrator(channels []Channel, recorder Recorder, logger *slog.Logger) *Orchestrator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{channels: channels, recorder: recorder, logger: logger}
}

// Wake returns the channel that succeeded, or *AllFailedError.
func (o *Orchestrator) Wake(ctx context.Context, target *frame.Target) (frame.Channel, error) {
	var failures []ChannelError
	for _, ch := range o.channels {
		name := ch.Name()
		if !ch.Eligible(target) {
			o.logger.Debug("wake channel skipped", "channel", name, "frame", target.ID)
			continue
		}
		if err := ctx.Err(); err != nil {
			failures = append(failures, ChannelError{Channel: name, Err: err})
			break
		}

		started := time.Now()
		err := ch.Attempt(ctx, target)
		o.recorder.ObserveWakeAttempt(name, err == nil, time.Since(started))
		if err == nil {
			o.logger.Info("frame awake", "channel", name, "frame", target.ID, "failed_before", len(failures))
			return name, nil
		}
		o.logger.Warn("wake channel failed", "channel", name, "frame", target.ID, "err", err)
		failures = append(failures, ChannelError{Channel: name, Err: err})
	}
	return "", &AllFailedError{Failures: failures}
}

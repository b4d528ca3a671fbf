// Package scheduler feeds presence events to the pipeline one at a time.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/micro-ha/bloomin-presence/internal/pipeline"
)

type Runner interface {
	Run(ctx context.Context, trig pipeline.Trigger) (pipeline.Report, error)
}

// Recorder counts triggers that were replaced before they ran.
type Recorder interface {
	IncTriggerReplaced()
}

type nopRecorder struct{}

func (nopRecorder) IncTriggerReplaced() {}

// Scheduler runs at most one trigger at a time and keeps a single pending
// slot. A trigger submitted while another is pending replaces it.
type Scheduler struct {
	runner   Runner
	recorder Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	pending *pipeline.Trigger
	readyCh chan struct{}
}

func New(runner Runner, recorder Recorder, logger *slog.Logger) *Scheduler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: runner, recorder: recorder, logger: logger, readyCh: make(chan struct{}, 1)}
}

// Submit never blocks.
func (s *Scheduler) Submit(trig pipeline.Trigger) {
	s.mu.Lock()
	if s.pending != nil {
		s.logger.Info("pending trigger replaced", "trigger", string(s.pending.Kind), "entity", s.pending.EntityID)
		s.recorder.IncTriggerReplaced()
	}
	s.pending = &trig
	s.mu.Unlock()

	select {
	case s.readyCh <- struct{}{}:
	default:
	}
}

// Run processes triggers until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.readyCh:
		}

		s.mu.Lock()
		trig := s.pending
		s.pending = nil
		s.mu.Unlock()
		if trig == nil {
			continue
		}

		// outcome and error are logged by the pipeline
		_, _ = s.runner.Run(ctx, *trig)
	}
}

// Package pipeline runs one presence image update: resolve, wake, render,
// deliver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
	"github.com/micro-ha/bloomin-presence/internal/overlay"
	"github.com/micro-ha/bloomin-presence/internal/pkg/utils"
)

// TriggerKind names what started a run.
type TriggerKind string

const (
	TriggerPresenceChange TriggerKind = "presence_change"
	TriggerUpdateDisplay  TriggerKind = "update_display"
	TriggerUploadImage    TriggerKind = "upload_image"
)

// Trigger is the input of one run.
type Trigger struct {
	Kind     TriggerKind
	EntityID string
	// State is the new state of EntityID for presence triggers.
	State frame.PresenceState
	// Path overrides the configured source for upload triggers.
	Path string
}

// PresenceChanged builds a trigger from a state_changed notification.
func PresenceChanged(change frame.PresenceChange) Trigger {
	return Trigger{Kind: TriggerPresenceChange, EntityID: change.EntityID, State: frame.ParsePresence(change.NewState)}
}

func UpdateDisplay() Trigger {
	return Trigger{Kind: TriggerUpdateDisplay}
}

func UploadImage(path string) Trigger {
	return Trigger{Kind: TriggerUploadImage, Path: path}
}

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeDelivered           Outcome = "delivered"
	OutcomeSuppressed          Outcome = "suppressed"
	OutcomeNoImage             Outcome = "no_image"
	OutcomePresenceUnavailable Outcome = "presence_unavailable"
	OutcomeWakeFailed          Outcome = "wake_failed"
	OutcomeCompositeFailed     Outcome = "composite_failed"
	OutcomeDeliveryFailed      Outcome = "delivery_failed"
)

// Report describes a finished run; Outcome is always set.
type Report struct {
	Trigger    TriggerKind   `json:"trigger"`
	Outcome    Outcome       `json:"outcome"`
	Presence   string        `json:"presence"`
	Image      string        `json:"image,omitempty"`
	WokenBy    frame.Channel `json:"woken_by,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

type Resolver interface {
	Resolve(ref frame.SourceRef) (string, error)
}

type Waker interface {
	Wake(ctx context.Context, target *frame.Target) (frame.Channel, error)
}

type Renderer interface {
	Render(src []byte, state frame.PresenceState, spec frame.OverlaySpec) (overlay.Image, error)
}

// Sink delivers the final image to the frame.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, image overlay.Image) error
}

// PresenceReader returns the raw state of a person entity.
type PresenceReader interface {
	PresenceState(ctx context.Context, entityID string) (string, error)
}

// Recorder receives one observation per finished run.
type Recorder interface {
	ObservePipelineRun(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObservePipelineRun(string, time.Duration) {}

// Config is the per-frame part of the pipeline that never changes at runtime.
type Config struct {
	Target  *frame.Target
	Source  frame.SourceRef
	Overlay frame.OverlaySpec
	Persons []string
}

type Deps struct {
	Resolver Resolver
	Waker    Waker
	Renderer Renderer
	Sink     Sink
	Presence PresenceReader
	Recorder Recorder
	Logger   *slog.Logger
}

// Pipeline runs are serialized per frame.
type Pipeline struct {
	cfg  Config
	deps Deps

	runMu sync.Mutex

	lastMu sync.RWMutex
	last   *Report
}

func New(cfg Config, deps Deps) *Pipeline {
	cfg.Overlay = cfg.Overlay.Normalize()
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// Target exposes the managed frame.
func (p *Pipeline) Target() *frame.Target {
	return p.cfg.Target
}

// LastReport returns the most recent finished run.
func (p *Pipeline) LastReport() (Report, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	if p.last == nil {
		return Report{}, false
	}
	return *p.last, true
}

// Run executes one update. The image is resolved before presence is read and
// before anything is woken. The returned error is one of *ResolveError,
// *PresenceError, *WakeError, *CompositeError or *DeliveryError, or nil for
// delivered and suppressed runs.
func (p *Pipeline) Run(ctx context.Context, trig Trigger) (report Report, err error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	report = Report{Trigger: trig.Kind, StartedAt: utils.NowUTC()}
	logger := p.deps.Logger.With("frame", p.cfg.Target.ID, "trigger", string(trig.Kind))
	defer func() {
		report.FinishedAt = utils.NowUTC()
		if err != nil {
			report.Error = err.Error()
		}
		p.deps.Recorder.ObservePipelineRun(string(report.Outcome), report.FinishedAt.Sub(report.StartedAt))
		p.lastMu.Lock()
		snapshot := report
		p.last = &snapshot
		p.lastMu.Unlock()
		if err != nil {
			logger.Warn("pipeline run failed", "outcome", string(report.Outcome), "err", err)
		} else {
			logger.Info("pipeline run finished", "outcome", string(report.Outcome), "channel", string(report.WokenBy))
		}
	}()

	ref := p.cfg.Source
	if trig.Kind == TriggerUploadImage {
		ref = frame.File(trig.Path)
	}
	path, err := p.deps.Resolver.Resolve(ref)
	if err != nil {
		report.Outcome = OutcomeNoImage
		return report, &ResolveError{Source: ref.String(), Err: err}
	}
	report.Image = path

	state, err := p.presence(ctx, trig, logger)
	report.Presence = state.String()
	if err != nil {
		report.Outcome = OutcomePresenceUnavailable
		return report, err
	}
	if state == frame.PresenceUnknown {
		logger.Info("presence unknown, skipping display update")
		report.Outcome = OutcomeSuppressed
		return report, nil
	}

	channel, err := p.deps.Waker.Wake(ctx, p.cfg.Target)
	if err != nil {
		report.Outcome = OutcomeWakeFailed
		return report, &WakeError{Err: err}
	}
	report.WokenBy = channel

	src, err := os.ReadFile(path)
	if err != nil {
		report.Outcome = OutcomeCompositeFailed
		return report, &CompositeError{Path: path, Err: err}
	}
	img, err := p.deps.Renderer.Render(src, state, p.cfg.Overlay)
	if err != nil {
		report.Outcome = OutcomeCompositeFailed
		return report, &CompositeError{Path: path, Err: err}
	}

	if err := p.deps.Sink.Deliver(ctx, img); err != nil {
		report.Outcome = OutcomeDeliveryFailed
		return report, &DeliveryError{Sink: p.deps.Sink.Name(), Err: err}
	}
	report.Outcome = OutcomeDelivered
	return report, nil
}

// presence folds the trigger's state with the other configured persons. It
// fails only when the trigger carries no state and every lookup failed.
func (p *Pipeline) presence(ctx context.Context, trig Trigger, logger *slog.Logger) (frame.PresenceState, error) {
	var states []frame.PresenceState
	if trig.Kind == TriggerPresenceChange {
		states = append(states, trig.State)
	}
	if p.deps.Presence == nil {
		return frame.AggregatePresence(states...), nil
	}
	var failures []error
	lookups := 0
	for _, entity := range p.cfg.Persons {
		if trig.Kind == TriggerPresenceChange && entity == trig.EntityID {
			continue
		}
		lookups++
		raw, err := p.deps.Presence.PresenceState(ctx, entity)
		if err != nil {
			logger.Warn("read person state failed", "entity", entity, "err", err)
			failures = append(failures, fmt.Errorf("%s: %w", entity, err))
			continue
		}
		states = append(states, frame.ParsePresence(raw))
	}
	if len(states) == 0 && lookups > 0 && len(failures) == lookups {
		return frame.PresenceUnknown, &PresenceError{Err: errors.Join(failures...)}
	}
	return frame.AggregatePresence(states...), nil
}

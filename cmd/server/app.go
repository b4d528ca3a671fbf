package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/micro-ha/bloomin-presence/internal/ble"
	"github.com/micro-ha/bloomin-presence/internal/config"
	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
	"github.com/micro-ha/bloomin-presence/internal/frameapi"
	"github.com/micro-ha/bloomin-presence/internal/hass"
	"github.com/micro-ha/bloomin-presence/internal/http/handlers"
	"github.com/micro-ha/bloomin-presence/internal/imagesource"
	"github.com/micro-ha/bloomin-presence/internal/logging"
	"github.com/micro-ha/bloomin-presence/internal/metrics"
	"github.com/micro-ha/bloomin-presence/internal/overlay"
	"github.com/micro-ha/bloomin-presence/internal/pipeline"
	"github.com/micro-ha/bloomin-presence/internal/storage"
	"github.com/micro-ha/bloomin-presence/internal/wake"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      config.Config
	settings config.Settings
	logger   *slog.Logger
	repo     *storage.Repository
	metrics  *metrics.Metrics
	hass     *hass.Client
	ble      *ble.Channel
	pipeline *pipeline.Pipeline
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel)

	settings, err := cfg.Settings()
	if err != nil {
		return nil, fmt.Errorf("invalid frame options: %w", err)
	}

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	cache, err := repo.SyncFrame(ctx, settings.FrameID, settings.Host, settings.BLEAddress)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("load frame record: %w", err)
	}
	target := frame.NewTarget(settings.FrameID, settings.Host, settings.BLEAddress, cache)

	m := metrics.New()
	haClient := hass.NewClient(cfg.HABaseURL, cfg.SupervisorToken)

	frameClient := frameapi.NewClient(settings.Host, frameapi.DefaultEndpoints())
	if settings.DiscoverEndpoints {
		frameClient = frameClient.WithEndpoints(frameClient.DiscoverEndpoints(ctx))
		logger.Info("frame endpoints discovered", "endpoints", frameClient.Endpoints())
	}

	bleChannel := ble.NewChannel(ble.NewBlueZ(settings.BLEAdapter, logger), repo, cfg.BLETimeout, logger)
	orchestrator := wake.NewOrchestrator([]wake.Channel{
		bleChannel,
		wake.NewRemoteChannel(haClient, settings.WhistleEntityID),
		wake.NewHTTPChannel(frameClient),
	}, m, logger)

	compositor, err := overlay.NewCompositor()
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("initialize compositor: %w", err)
	}

	var sink pipeline.Sink = pipeline.NewHTTPSink(frameClient)
	if settings.Delivery == config.DeliveryMediaPlayer {
		sink = pipeline.NewMediaPlayerSink(haClient, cfg.MediaRoot, settings.MediaPlayerEntity, settings.FrameID, logger)
	}

	p := pipeline.New(
		pipeline.Config{
			Target:  target,
			Source:  settings.Source,
			Overlay: settings.Overlay,
			Persons: settings.Persons,
		},
		pipeline.Deps{
			Resolver: imagesource.NewResolver(cfg.MediaRoot, logger),
			Waker:    orchestrator,
			Renderer: compositor,
			Sink:     sink,
			Presence: haClient,
			Recorder: m,
			Logger:   logger,
		},
	)

	logger.Info("frame configured",
		"frame", target.ID,
		"host", target.Host,
		"ble", target.BLEEnabled(),
		"source", settings.Source.String(),
		"delivery", sink.Name(),
	)

	return &app{
		cfg:      cfg,
		settings: settings,
		logger:   logger,
		repo:     repo,
		metrics:  m,
		hass:     haClient,
		ble:      bleChannel,
		pipeline: p,
	}, nil
}

func (a *app) Close() error {
	return a.repo.Close()
}

// discoverer is nil when BLE wake is off so the API answers 409.
func (a *app) discoverer() handlers.Discoverer {
	if !a.pipeline.Target().BLEEnabled() {
		return nil
	}
	return a.ble
}

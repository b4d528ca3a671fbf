package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
	"github.com/micro-ha/bloomin-presence/internal/hass"
	httpapi "github.com/micro-ha/bloomin-presence/internal/http"
	"github.com/micro-ha/bloomin-presence/internal/http/handlers"
	"github.com/micro-ha/bloomin-presence/internal/pipeline"
	"github.com/micro-ha/bloomin-presence/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the add-on: watch presence and serve the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		logger := a.logger

		sched := scheduler.New(a.pipeline, a.metrics, logger)
		go sched.Run(ctx)

		if a.cfg.SupervisorToken != "" {
			watcher := hass.NewWatcher(a.hass.BaseURL(), a.cfg.SupervisorToken, a.settings.Persons, logger)
			go watcher.Run(ctx, func(change frame.PresenceChange) {
				a.metrics.IncPresenceEvent(frame.ParsePresence(change.NewState))
				sched.Submit(pipeline.PresenceChanged(change))
			})
		} else {
			logger.Warn("SUPERVISOR_TOKEN is empty; presence watcher disabled")
		}

		api := handlers.New(a.pipeline, a.discoverer(), logger)
		httpServer := &http.Server{
			Addr:              a.cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(api, a.metrics.Handler()),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		logger.Info("server starting", "addr", httpServer.Addr)
		if err := httpapi.RunServer(ctx, httpServer); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server terminated with error", "err", err)
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/micro-ha/bloomin-presence/internal/overlay"
)

// Uploader is the frame's own upload endpoint.
type Uploader interface {
	Deliver(ctx context.Context, body []byte, contentType string) error
}

// HTTPSink posts the image straight to the frame.
type HTTPSink struct {
	uploader Uploader
}

func NewHTTPSink(uploader Uploader) *HTTPSink {
	return &HTTPSink{uploader: uploader}
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Deliver(ctx context.Context, image overlay.Image) error {
	return s.uploader.Deliver(ctx, image.Bytes, image.ContentType())
}

// ServiceCaller invokes a Home Assistant service.
type ServiceCaller interface {
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}

const mediaSubdir = "bloomin_presence"

// MediaPlayerSink stores the image in the media folder and asks the frame's
// media_player entity to show it.
type MediaPlayerSink struct {
	caller    ServiceCaller
	mediaRoot string
	entityID  string
	frameID   string
	now       func() time.Time
	logger    *slog.Logger
}

func NewMediaPlayerSink(caller ServiceCaller, mediaRoot, entityID, frameID string, logger *slog.Logger) *MediaPlayerSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaPlayerSink{
		caller:    caller,
		mediaRoot: mediaRoot,
		entityID:  entityID,
		frameID:   frameID,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *MediaPlayerSink) Name() string { return "media_player" }

// Deliver tries each media_content_id form until the service accepts one.
func (s *MediaPlayerSink) Deliver(ctx context.Context, image overlay.Image) error {
	dir := filepath.Join(s.mediaRoot, mediaSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create media folder: %w", err)
	}
	name := fmt.Sprintf("presence_%s_%d%s", s.frameID, s.now().UnixMilli(), image.Ext())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, image.Bytes, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	var errs []error
	for _, contentID := range contentIDs(mediaSubdir + "/" + name) {
		err := s.caller.CallService(ctx, "media_player", "play_media", map[string]any{
			"entity_id":          s.entityID,
			"media_content_id":   contentID,
			"media_content_type": image.ContentType(),
		})
		if err == nil {
			s.logger.Info("image handed to media player", "entity", s.entityID, "media_content_id", contentID)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("play_media rejected content id", "media_content_id", contentID, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", contentID, err))
	}
	return errors.Join(errs...)
}

func contentIDs(rel string) []string {
	return []string{
		"/media/local/" + rel,
		"media://local/" + rel,
		"/local/" + rel,
	}
}

package wake

import (
	"context"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

// Waker is the frame's own wake endpoint.
type Waker interface {
	Wake(ctx context.Context) error
}

// HTTPChannel wakes the frame through its local API.
type HTTPChannel struct {
	waker Waker
}

func NewHTTPChannel(waker Waker) *HTTPChannel {
	return &HTTPChannel{waker: waker}
}

func (c *HTTPChannel) Name() frame.Channel {
	return frame.ChannelHTTP
}

func (c *HTTPChannel) Eligible(target *frame.Target) bool {
	return c.waker != nil && target.Host != ""
}

func (c *HTTPChannel) Attempt(ctx context.Context, _ *frame.Target) error {
	return c.waker.Wake(ctx)
}

package wake

import (
	"context"
	"fmt"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

const (
	whistleDomain  = "eink_display"
	whistleService = "whistle"
)

// ServiceCaller is the Home Assistant service registry.
type ServiceCaller interface {
	HasService(ctx context.Context, domain, service string) (bool, error)
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}

// RemoteChannel wakes the frame through the eink_display.whistle service.
type RemoteChannel struct {
	caller   ServiceCaller
	entityID string
}

// NewRemoteChannel targets entityID when set, otherwise the service default.
func NewRemoteChannel(caller ServiceCaller, entityID string) *RemoteChannel {
	return &RemoteChannel{caller: caller, entityID: entityID}
}

func (c *RemoteChannel) Name() frame.Channel {
	return frame.ChannelRemoteService
}

func (c *RemoteChannel) Eligible(*frame.Target) bool {
	return c.caller != nil
}

func (c *RemoteChannel) Attempt(ctx context.Context, _ *frame.Target) error {
	ok, err := c.caller.HasService(ctx, whistleDomain, whistleService)
	if err != nil {
		return fmt.Errorf("lookup %s.%s: %w", whistleDomain, whistleService, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s.%s not registered", ErrServiceUnavailable, whistleDomain, whistleService)
	}
	data := map[string]any{}
	if c.entityID != "" {
		data["entity_id"] = c.entityID
	}
	if err := c.caller.CallService(ctx, whistleDomain, whistleService, data); err != nil {
		return fmt.Errorf("call %s.%s: %w", whistleDomain, whistleService, err)
	}
	return nil
}

package connector

import (
	"context"

	"github.com/Ramsey-B/pollen/pkg/models"
)

// ChannelEvents is notified when a channel becomes enabled.
type ChannelEvents interface {
	ChannelEnabled(ctx context.Context, channel models.Channel) error
}

type NopChannelEvents struct{}

func (NopChannelEvents) ChannelEnabled(context.Context, models.Channel) error { return nil }

// Package delivery pushes alerts to external collaborators: an HTTP webhook,
// live websocket clients and a Redis stream. A Dispatcher stores every alert
// and fans it out, holding back repeats within a per-sensor cooldown.
package delivery

import (
	"context"

	"github.com/okian/airrisk/internal/domain/model"
)

// Channel names used in logs and metrics.
const (
	ChannelWebhook   = "webhook"
	ChannelWebsocket = "websocket"
	ChannelRedis     = "redis"
)

// Notifier delivers one alert.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a model.AlertEvent) error
}

package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"scribe/internal/featureflags"
	"scribe/internal/middleware"
	"scribe/internal/observability"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated         = "post_created"
	EventPostUpdated         = "post_updated"
	EventPostDeleted         = "post_deleted"
	EventPostReactionUpdated = "post_reaction_updated"
	EventPostViewed          = "post_viewed"
)

// Event is the wire form of a realtime message.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Publisher routes events through Redis when available and straight to the
// local hub otherwise. Failures are logged and never returned.
type Publisher struct {
	notifier *Notifier
	hub      *Hub
	flags    *featureflags.Manager
}

// NewPublisher wires a publisher; any argument may be nil. Nil flags publish everything.
func NewPublisher(notifier *Notifier, hub *Hub, flags *featureflags.Manager) *Publisher {
	return &Publisher{notifier: notifier, hub: hub, flags: flags}
}

// Publish encodes and delivers one event on behalf of userID.
func (p *Publisher) Publish(ctx context.Context, userID uint, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	if p.flags != nil && !p.flags.Enabled(featureflags.RealtimeEvents, userID) {
		return
	}

	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	if p.notifier.Enabled() {
		if err := p.notifier.Publish(context.WithoutCancel(ctx), string(data)); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish event",
				slog.String("event_type", eventType),
				slog.String("error", err.Error()),
			)
			return
		}
		observability.EventsPublished.WithLabelValues(eventType, "redis").Inc()
		return
	}

	if p.hub != nil {
		p.hub.BroadcastAll(string(data))
		observability.EventsPublished.WithLabelValues(eventType, "local").Inc()
	}
}

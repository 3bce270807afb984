package claim

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/expense-claims/internal/core/events"
)

// NotificationLogger records every claim lifecycle event. It stands in for
// mail or chat notifications.
func NotificationLogger(logger *slog.Logger) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		ce, ok := e.(*events.ClaimEvent)
		if !ok {
			logger.WarnContext(ctx, "unexpected event payload", "event_type", e.EventType())
			return nil
		}
		attrs := []any{
			"event_id", ce.EventID(),
			"event_type", ce.EventType(),
			"claim_id", ce.ClaimID,
			"actor_id", ce.ActorID,
			"status", ce.Status,
		}
		if ce.Reason != "" {
			attrs = append(attrs, "reason", ce.Reason)
		}
		logger.InfoContext(ctx, "claim notification", attrs...)
		return nil
	}
}

// SubscribeNotifications wires NotificationLogger to every claim event type.
func SubscribeNotifications(bus *events.EventBus, logger *slog.Logger) {
	h := NotificationLogger(logger)
	for _, t := range events.ClaimEventTypes {
		bus.Subscribe(t, h)
	}
}

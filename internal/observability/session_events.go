package observability

import (
	"context"

	"go.uber.org/zap"

	"github.com/btangonan/calm-productivity-app-sub002/internal/events"
)

// SubscribeSessionEvents wires log and metrics subscribers for every
// session event type the service publishes.
func SubscribeSessionEvents(dispatcher events.Dispatcher, logger *zap.Logger, metrics *Metrics) {
	dispatcher.Subscribe(events.EventCacheInvalidated, func(_ context.Context, event events.Event) error {
		if payload, ok := event.Payload.(events.CacheInvalidatedPayload); ok {
			metrics.RecordInvalidation(len(payload.Keys))
			logger.Info("cache invalidated",
				zap.String("scope", event.UserScope),
				zap.Strings("keys", payload.Keys))
		}
		return nil
	})

	dispatcher.Subscribe(events.EventTokenStored, func(_ context.Context, event events.Event) error {
		logger.Info("refresh token stored", zap.String("scope", event.UserScope))
		return nil
	})

	dispatcher.Subscribe(events.EventTokenRefreshed, func(_ context.Context, event events.Event) error {
		fields := []zap.Field{zap.String("scope", event.UserScope)}
		if payload, ok := event.Payload.(events.TokenRefreshedPayload); ok {
			fields = append(fields, zap.Int64("expires_in", payload.ExpiresIn))
		}
		logger.Info("access token refreshed", fields...)
		return nil
	})
}

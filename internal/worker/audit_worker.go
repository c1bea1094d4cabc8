package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/Behnamfe76/auth-service/internal/events"
)

// StartAuditWorker subscribes a structured-log audit trail to every auth event.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	audit := logger.Named("audit")
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		fields := []zap.Field{
			zap.String("event_id", event.ID),
			zap.String("event", string(event.Type)),
			zap.Time("at", event.Timestamp),
		}
		if event.Subject != "" {
			fields = append(fields, zap.String("sub", event.Subject))
		}
		for k, v := range event.Attrs {
			fields = append(fields, zap.String(k, v))
		}
		audit.Info("auth event", fields...)
		return nil
	})
}

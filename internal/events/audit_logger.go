package events

import (
	"context"

	"go.uber.org/zap"
)

// AuditLogger writes every audit event to the structured log. It stands in
// for the tenant log channel when no platform sink is configured and runs
// alongside one when it is.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates the subscriber.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// RegisterHandlers subscribes to all audit kinds.
func (a *AuditLogger) RegisterHandlers(sink AuditSink) {
	for _, kind := range []Kind{KindTicketCreated, KindTicketClaimed, KindTicketTransferred, KindTicketClosed} {
		sink.Subscribe(kind, a.handle)
	}
}

func (a *AuditLogger) handle(ctx context.Context, event Event) error {
	a.logger.Info("audit event",
		zap.String("event_id", event.ID),
		zap.String("tenant_id", event.TenantID),
		zap.String("kind", string(event.Kind)),
		zap.Any("payload", event.Payload))
	return nil
}

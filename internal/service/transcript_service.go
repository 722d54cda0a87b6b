package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/platform"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/schedule"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// TranscriptService owns the close flow: render the channel history into
// an immutable document, record its hash and size, and tear the channel
// down through the tenant scheduler.
type TranscriptService struct {
	tickets   repository.TicketStore
	scheduler *schedule.Scheduler
	channels  platform.ChannelOps
	sink      platform.TranscriptSink
	audit     events.AuditSink
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// TranscriptDependencies bundles collaborators for the close flow.
type TranscriptDependencies struct {
	TicketStore repository.TicketStore
	Scheduler   *schedule.Scheduler
	ChannelOps  platform.ChannelOps
	Sink        platform.TranscriptSink
	AuditSink   events.AuditSink
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewTranscriptService constructs the service.
func NewTranscriptService(deps TranscriptDependencies) *TranscriptService {
	return &TranscriptService{
		tickets:   deps.TicketStore,
		scheduler: deps.Scheduler,
		channels:  deps.ChannelOps,
		sink:      deps.Sink,
		audit:     deps.AuditSink,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// Close terminates a ticket. The transcript render and publish are
// best-effort; the status update is authoritative and never skipped once
// the metadata is computed. Status flips to closed strictly before the
// channel teardown is scheduled, so teardown never races an open ticket.
func (s *TranscriptService) Close(ctx context.Context, tenantID, ticketID, closedBy, reason string) error {
	start := s.now()

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if ticket.TenantID != tenantID {
		return apperrors.NewNotFound("ticket", nil)
	}
	if !ticket.IsOpen() {
		return apperrors.NewConflict("ticket not found or already closed", nil)
	}

	record := s.render(ctx, ticket, closedBy, reason)

	var pointer *string
	if s.sink != nil {
		if p, err := s.sink.Publish(ctx, tenantID, record); err != nil {
			s.logger.Error("failed to publish transcript",
				zap.String("ticket_id", ticketID), zap.Error(err))
		} else if p != "" {
			pointer = &p
		}
	}

	closure := &domain.Closure{
		Reason:              reason,
		ClosedBy:            closedBy,
		ClosedAt:            s.now(),
		TranscriptSHA256:    record.SHA256,
		TranscriptSizeBytes: record.SizeBytes,
		TranscriptPointer:   pointer,
	}
	if err := s.tickets.UpdateStatus(ctx, ticketID, domain.TicketStatusClosed, closure); err != nil {
		return apperrors.MapError(err)
	}

	s.emitClosed(ctx, tenantID, ticketID, closedBy, reason, record)

	channelID := ticket.ChannelID
	if err := s.scheduler.Schedule(ctx, tenantID, func(taskCtx context.Context) error {
		return s.channels.DeleteChannel(taskCtx, channelID, "ticket closed by "+closedBy)
	}); err != nil {
		// Closed status stands regardless of teardown failures.
		s.logger.Error("failed to delete ticket channel",
			zap.String("ticket_id", ticketID),
			zap.String("channel_id", channelID),
			zap.Error(err))
	}

	latency := s.now().Sub(start)
	s.metrics.RecordAction("ticket_close", latency)
	s.logger.Info("ticket action",
		zap.String("tenant_id", tenantID),
		zap.String("ticket_id", ticketID),
		zap.String("user_id", closedBy),
		zap.String("action", "ticket_close"),
		zap.Int64("latency_ms", latency.Milliseconds()))
	return nil
}

// render produces the immutable transcript document. History fetch
// failures yield a header-only document; the close still proceeds with
// valid integrity metadata over what was rendered.
func (s *TranscriptService) render(ctx context.Context, ticket *domain.Ticket, closedBy, reason string) *domain.TranscriptRecord {
	var b strings.Builder

	b.WriteString("# ticket transcript\n\n")
	fmt.Fprintf(&b, "- **id:** %s\n", ticket.ID)
	fmt.Fprintf(&b, "- **opener:** %s\n", ticket.OpenerID)
	fmt.Fprintf(&b, "- **closed by:** %s\n", closedBy)
	fmt.Fprintf(&b, "- **reason:** %s\n", reason)
	fmt.Fprintf(&b, "- **opened:** %s\n", ticket.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **closed:** %s\n", s.now().UTC().Format(time.RFC3339))
	b.WriteString("\n---\n\n")

	history, err := s.channels.RenderHistory(ctx, ticket.ChannelID)
	if err != nil {
		s.logger.Error("failed to fetch channel history",
			zap.String("ticket_id", ticket.ID),
			zap.String("channel_id", ticket.ChannelID),
			zap.Error(err))
	}

	for _, msg := range history {
		fmt.Fprintf(&b, "[%s] **%s (%s)**: %s\n",
			msg.CreatedAt.UTC().Format(time.RFC3339), msg.AuthorTag, msg.AuthorID, msg.Content)
		for _, att := range msg.Attachments {
			fmt.Fprintf(&b, "> [Attachment: %s](%s)\n", att.Name, att.URL)
		}
		if msg.HasEmbeds {
			b.WriteString("> [Embed Content Hidden]\n")
		}
		b.WriteString("\n")
	}

	body := b.String()
	sum := sha256.Sum256([]byte(body))
	return &domain.TranscriptRecord{
		TicketID:    ticket.ID,
		Body:        body,
		SHA256:      hex.EncodeToString(sum[:]),
		SizeBytes:   int64(len(body)),
		GeneratedAt: s.now(),
	}
}

func (s *TranscriptService) emitClosed(ctx context.Context, tenantID, ticketID, closedBy, reason string, record *domain.TranscriptRecord) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, events.Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Kind:      events.KindTicketClosed,
		Timestamp: s.now(),
		Payload: events.TicketClosedPayload{
			TicketID:            ticketID,
			ClosedBy:            closedBy,
			Reason:              reason,
			TranscriptSHA256:    record.SHA256,
			TranscriptSizeBytes: record.SizeBytes,
		},
	})
}

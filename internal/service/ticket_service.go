package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
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

// TicketService coordinates ticket creation, claim and transfer. Channel
// create/delete side effects go through the per-tenant scheduler;
// permission grants do not (the platform does not rate limit those the
// same way — behavior carried over unchanged).
type TicketService struct {
	configs   repository.TenantConfigStore
	tickets   repository.TicketStore
	scheduler *schedule.Scheduler
	channels  platform.ChannelOps
	audit     events.AuditSink
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// TicketDependencies bundles collaborators for the service.
type TicketDependencies struct {
	ConfigStore repository.TenantConfigStore
	TicketStore repository.TicketStore
	Scheduler   *schedule.Scheduler
	ChannelOps  platform.ChannelOps
	AuditSink   events.AuditSink
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		configs:   deps.ConfigStore,
		tickets:   deps.TicketStore,
		scheduler: deps.Scheduler,
		channels:  deps.ChannelOps,
		audit:     deps.AuditSink,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// Create runs the admission checks in order, persists a provisional
// record, schedules channel creation on the tenant's queue and back-fills
// the channel id. On scheduled-task failure the provisional record is left
// with the PENDING channel marker for operator cleanup; there is no
// automatic rollback.
func (s *TicketService) Create(ctx context.Context, tenantID, userID, typeKey string, formInputs map[string]string) (string, error) {
	start := time.Now()

	cfg, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if cfg == nil {
		return "", apperrors.NewNotFound("tenant configuration", map[string]any{"tenant_id": tenantID})
	}
	if !cfg.Enabled {
		return "", apperrors.NewPolicyRejection("ticket system is currently disabled", nil)
	}
	if cfg.Blacklisted(userID) {
		return "", apperrors.NewPolicyRejection("you are blacklisted from opening tickets", nil)
	}

	if cfg.CooldownSeconds > 0 {
		last, err := s.tickets.FindLastByOpener(ctx, tenantID, userID)
		if err != nil {
			return "", apperrors.MapError(err)
		}
		if last != nil {
			elapsed := time.Since(last.CreatedAt).Seconds()
			if elapsed < float64(cfg.CooldownSeconds) {
				remaining := int(math.Ceil(float64(cfg.CooldownSeconds) - elapsed))
				return "", apperrors.NewPolicyRejection(
					fmt.Sprintf("please wait %d seconds before opening another ticket", remaining),
					map[string]any{"remaining_seconds": remaining})
			}
		}
	}

	open, err := s.tickets.FindOpenByOpener(ctx, tenantID, userID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if len(open) >= cfg.MaxOpenPerUser {
		return "", apperrors.NewPolicyRejection(
			fmt.Sprintf("you already have an open ticket, limit is %d", cfg.MaxOpenPerUser),
			map[string]any{"limit": cfg.MaxOpenPerUser})
	}

	typeCfg, ok := cfg.ResolveType(typeKey)
	if !ok {
		return "", apperrors.NewValidationError("invalid ticket type", map[string]any{"type_key": typeKey})
	}

	seq, err := s.configs.NextTicketSeq(ctx, tenantID)
	if err != nil {
		return "", apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Seq:       seq,
		ChannelID: domain.PendingChannelID,
		OpenerID:  userID,
		TypeKey:   typeKey,
		Status:    domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return "", apperrors.MapError(err)
	}

	channelName := s.channelName(ctx, cfg, typeCfg, ticket, userID)
	spec := platform.ChannelSpec{
		Name:           channelName,
		Topic:          fmt.Sprintf("Ticket #%d | Type: %s | Opener: %s", seq, typeCfg.Label, userID),
		CategoryID:     typeCfg.CategoryID,
		OpenerID:       userID,
		SupportRoleIDs: cfg.SupportRoleIDs,
		FormInputs:     formInputs,
	}

	var channelID string
	scheduleErr := s.scheduler.Schedule(ctx, tenantID, func(taskCtx context.Context) error {
		id, err := s.channels.CreateChannel(taskCtx, tenantID, spec)
		if err != nil {
			return err
		}
		channelID = id
		return nil
	})
	s.metrics.RecordSchedulerDepth(tenantID, s.scheduler.PendingCount(tenantID))
	if scheduleErr != nil || channelID == "" {
		// Provisional record stays behind with the PENDING marker.
		s.logger.Error("channel creation failed, ticket orphaned",
			zap.String("tenant_id", tenantID),
			zap.String("ticket_id", ticket.ID),
			zap.Error(scheduleErr))
		return "", apperrors.NewInfrastructureError("failed to create ticket channel", scheduleErr)
	}

	if err := s.tickets.SetChannel(ctx, ticket.ID, channelID); err != nil {
		return "", apperrors.MapError(err)
	}
	ticket.ChannelID = channelID

	s.emit(ctx, tenantID, events.KindTicketCreated, events.TicketCreatedPayload{
		TicketID:   ticket.ID,
		OpenerID:   userID,
		ChannelID:  channelID,
		TypeKey:    typeKey,
		Seq:        seq,
		FormInputs: formInputs,
	})

	if cfg.DMNotifications {
		msg := fmt.Sprintf("your ticket #%d has been created", seq)
		if err := s.channels.NotifyUser(ctx, userID, msg); err != nil {
			s.logger.Warn("failed to notify opener",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.logAction(tenantID, ticket.ID, userID, "ticket_create", start)
	return channelID, nil
}

// Claim gives staffID exclusive ownership of an unclaimed ticket. Already
// claimed is a silent no-op so concurrent double-clicks stay harmless; the
// store-level conditional write decides the winner.
func (s *TicketService) Claim(ctx context.Context, tenantID, ticketID, staffID string) error {
	start := time.Now()

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if ticket.TenantID != tenantID {
		// Another tenant's ticket looks like no ticket at all.
		return apperrors.NewNotFound("ticket", nil)
	}
	if ticket.Claimed() {
		return nil
	}

	claimed, err := s.tickets.SetClaim(ctx, ticketID, staffID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !claimed {
		// Lost the race; the other claimer keeps the ticket.
		return nil
	}

	s.emit(ctx, tenantID, events.KindTicketClaimed, events.TicketClaimedPayload{
		TicketID: ticketID,
		StaffID:  staffID,
	})
	s.logAction(tenantID, ticketID, staffID, "ticket_claim", start)
	return nil
}

// Transfer reassigns ownership unconditionally and grants the new owner
// access to the bound channel. The grant is a direct platform call, not a
// scheduled one, and its failure is logged rather than propagated.
func (s *TicketService) Transfer(ctx context.Context, tenantID, ticketID, newOwnerID, executorID string) error {
	start := time.Now()

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if ticket.TenantID != tenantID {
		return apperrors.NewNotFound("ticket", nil)
	}
	if err := s.tickets.Transfer(ctx, ticketID, newOwnerID); err != nil {
		return apperrors.MapError(err)
	}

	s.emit(ctx, tenantID, events.KindTicketTransferred, events.TicketTransferredPayload{
		TicketID:   ticketID,
		ExecutorID: executorID,
		NewOwnerID: newOwnerID,
	})

	if err := s.channels.GrantAccess(ctx, ticket.ChannelID, newOwnerID); err != nil {
		s.logger.Warn("failed to grant channel access after transfer",
			zap.String("ticket_id", ticketID),
			zap.String("new_owner_id", newOwnerID),
			zap.Error(err))
	}

	s.logAction(tenantID, ticketID, executorID, "ticket_transfer", start)
	return nil
}

// Get fetches a ticket by id.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// RecordActivity bumps last_activity_at for the ticket bound to channelID,
// feeding the auto-close cutoff.
func (s *TicketService) RecordActivity(ctx context.Context, channelID string) error {
	return s.tickets.TouchActivity(ctx, channelID, time.Now())
}

var nonChannelChars = regexp.MustCompile(`[^a-z0-9]+`)

// channelName expands the tenant's naming template. User lookup is
// best-effort: naming falls back to "user" when the platform cannot
// resolve the opener.
func (s *TicketService) channelName(ctx context.Context, cfg *domain.TenantConfig, typeCfg domain.TicketType, ticket *domain.Ticket, userID string) string {
	safeUser := "user"
	if name, err := s.channels.LookupUserName(ctx, userID); err == nil {
		if sanitized := sanitizeName(name); sanitized != "" {
			safeUser = sanitized
		}
	} else {
		s.logger.Warn("failed to resolve opener name",
			zap.String("user_id", userID), zap.Error(err))
	}

	shortID := ticket.ID
	if i := strings.IndexByte(shortID, '-'); i > 0 {
		shortID = shortID[:i]
	}

	replacer := strings.NewReplacer(
		"{type}", sanitizeName(typeCfg.Label),
		"{type_key}", strings.ToLower(ticket.TypeKey),
		"{seq}", strconv.FormatInt(ticket.Seq, 10),
		"{user}", safeUser,
		"{id}", shortID,
	)
	return replacer.Replace(cfg.NamingScheme)
}

func sanitizeName(name string) string {
	name = nonChannelChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(name, "-")
}

func (s *TicketService) emit(ctx context.Context, tenantID string, kind events.Kind, payload interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, events.Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (s *TicketService) logAction(tenantID, ticketID, userID, action string, start time.Time) {
	latency := time.Since(start)
	s.metrics.RecordAction(action, latency)
	s.logger.Info("ticket action",
		zap.String("tenant_id", tenantID),
		zap.String("ticket_id", ticketID),
		zap.String("user_id", userID),
		zap.String("action", action),
		zap.Int64("latency_ms", latency.Milliseconds()))
}

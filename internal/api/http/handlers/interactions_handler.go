package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/service"
	"github.com/spec-kit/ticket-engine/internal/token"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// Ticket action names as embedded in signed tokens.
const (
	actionClaim    = "claim"
	actionClose    = "close"
	actionTransfer = "trans"
)

// InteractionsHandler processes signed UI actions forwarded by the
// platform gateway. Authorization failures are answered with one generic
// message regardless of which check failed.
type InteractionsHandler struct {
	codec       *token.Codec
	tickets     *service.TicketService
	transcripts *service.TranscriptService
	logger      *zap.Logger
}

// NewInteractionsHandler constructs the handler.
func NewInteractionsHandler(codec *token.Codec, tickets *service.TicketService, transcripts *service.TranscriptService, logger *zap.Logger) *InteractionsHandler {
	return &InteractionsHandler{codec: codec, tickets: tickets, transcripts: transcripts, logger: logger}
}

// Handle verifies the action token and dispatches the lifecycle action.
func (h *InteractionsHandler) Handle(c *fiber.Ctx) error {
	var req dto.InteractionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.TenantID == "" || req.ActorID == "" || req.Token == "" {
		return apperrors.NewValidationError("tenant_id, actor_id and token are required", nil)
	}

	if !h.codec.Verify(req.TenantID, req.Token) {
		h.logger.Warn("rejected interaction token", zap.String("tenant_id", req.TenantID))
		return apperrors.NewUnauthorized("this action could not be authorized")
	}
	payload, ok := h.codec.Decode(req.Token)
	if !ok {
		return apperrors.NewUnauthorized("this action could not be authorized")
	}

	ctx := c.UserContext()
	switch payload.Action {
	case actionClaim:
		if err := h.tickets.Claim(ctx, req.TenantID, payload.TicketID, req.ActorID); err != nil {
			return err
		}
	case actionClose:
		reason := req.Reason
		if reason == "" {
			reason = "closed via ticket panel"
		}
		if err := h.transcripts.Close(ctx, req.TenantID, payload.TicketID, req.ActorID, reason); err != nil {
			return err
		}
	case actionTransfer:
		if req.TargetID == "" {
			return apperrors.NewValidationError("target_id is required for transfer", nil)
		}
		if err := h.tickets.Transfer(ctx, req.TenantID, payload.TicketID, req.TargetID, req.ActorID); err != nil {
			return err
		}
	default:
		return apperrors.NewValidationError("unknown action", map[string]any{"action": payload.Action})
	}

	return c.JSON(fiber.Map{"status": "ok", "action": payload.Action, "ticket_id": payload.TicketID})
}

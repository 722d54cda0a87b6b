package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/service"
	"github.com/spec-kit/ticket-engine/internal/token"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// TicketsHandler exposes lifecycle operations on the admin API.
type TicketsHandler struct {
	tickets     *service.TicketService
	transcripts *service.TranscriptService
	codec       *token.Codec
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(tickets *service.TicketService, transcripts *service.TranscriptService, codec *token.Codec) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, transcripts: transcripts, codec: codec}
}

// Create opens a new ticket for a user.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.UserID == "" || req.TypeKey == "" {
		return apperrors.NewValidationError("user_id and type_key are required", nil)
	}

	channelID, err := h.tickets.Create(c.UserContext(), tenantID, req.UserID, req.TypeKey, req.FormInputs)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CreateTicketResponse{ChannelID: channelID})
}

// Get returns one ticket.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("ticketID"))
	if err != nil {
		return err
	}
	if ticket.TenantID != c.Params("tenantID") {
		return apperrors.NewNotFound("ticket", nil)
	}
	return c.JSON(dto.FromTicket(ticket))
}

// ActionTokens mints the signed tokens the gateway embeds in the ticket
// panel's components.
func (h *TicketsHandler) ActionTokens(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("ticketID"))
	if err != nil {
		return err
	}
	if ticket.TenantID != tenantID {
		return apperrors.NewNotFound("ticket", nil)
	}
	return c.JSON(dto.ActionTokensResponse{
		TicketID: ticket.ID,
		Tokens: map[string]string{
			actionClaim:    h.codec.Issue(tenantID, ticket.ID, actionClaim),
			actionClose:    h.codec.Issue(tenantID, ticket.ID, actionClose),
			actionTransfer: h.codec.Issue(tenantID, ticket.ID, actionTransfer),
		},
	})
}

// Claim assigns the ticket to a staff member.
func (h *TicketsHandler) Claim(c *fiber.Ctx) error {
	var req dto.ClaimTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.StaffID == "" {
		return apperrors.NewValidationError("staff_id is required", nil)
	}
	if err := h.tickets.Claim(c.UserContext(), c.Params("tenantID"), c.Params("ticketID"), req.StaffID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// Transfer reassigns ticket ownership.
func (h *TicketsHandler) Transfer(c *fiber.Ctx) error {
	var req dto.TransferTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.NewOwnerID == "" || req.ExecutorID == "" {
		return apperrors.NewValidationError("new_owner_id and executor_id are required", nil)
	}
	if err := h.tickets.Transfer(c.UserContext(), c.Params("tenantID"), c.Params("ticketID"), req.NewOwnerID, req.ExecutorID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// Close terminates the ticket through the transcript flow.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.ClosedBy == "" {
		return apperrors.NewValidationError("closed_by is required", nil)
	}
	if req.Reason == "" {
		req.Reason = "closed by staff"
	}
	if err := h.transcripts.Close(c.UserContext(), c.Params("tenantID"), c.Params("ticketID"), req.ClosedBy, req.Reason); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "closed"})
}

// Activity bumps the activity timestamp for a channel's ticket.
func (h *TicketsHandler) Activity(c *fiber.Ctx) error {
	var req dto.ActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.ChannelID == "" {
		return apperrors.NewValidationError("channel_id is required", nil)
	}
	if err := h.tickets.RecordActivity(c.UserContext(), req.ChannelID); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// ConfigHandler manages per-tenant ticketing settings.
type ConfigHandler struct {
	configs    repository.TenantConfigStore
	bcryptCost int
}

// NewConfigHandler constructs the handler.
func NewConfigHandler(configs repository.TenantConfigStore, bcryptCost int) *ConfigHandler {
	return &ConfigHandler{configs: configs, bcryptCost: bcryptCost}
}

// Get returns the tenant configuration.
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.configs.Get(c.UserContext(), c.Params("tenantID"))
	if err != nil {
		return apperrors.MapError(err)
	}
	if cfg == nil {
		return apperrors.NewNotFound("tenant configuration", nil)
	}
	return c.JSON(dto.TenantConfigRequest{
		Enabled:            cfg.Enabled,
		CooldownSeconds:    cfg.CooldownSeconds,
		MaxOpenPerUser:     cfg.MaxOpenPerUser,
		NamingScheme:       cfg.NamingScheme,
		TicketTypes:        cfg.TicketTypes,
		BlacklistedUserIDs: cfg.BlacklistedUserIDs,
		SupportRoleIDs:     cfg.SupportRoleIDs,
		LogChannelID:       cfg.LogChannelID,
		DMNotifications:    cfg.DMNotifications,
		AutoCloseHours:     cfg.AutoCloseHours,
	})
}

// Upsert creates or updates the tenant configuration. The sequence counter
// is never touched here; the API key is rotated only when the request
// carries a new one.
func (h *ConfigHandler) Upsert(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")

	var req dto.TenantConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.MaxOpenPerUser <= 0 {
		req.MaxOpenPerUser = 1
	}
	if req.NamingScheme == "" {
		req.NamingScheme = "ticket-{seq}"
	}

	existing, err := h.configs.Get(c.UserContext(), tenantID)
	if err != nil {
		return apperrors.MapError(err)
	}

	cfg := &domain.TenantConfig{
		TenantID:           tenantID,
		Enabled:            req.Enabled,
		CooldownSeconds:    req.CooldownSeconds,
		MaxOpenPerUser:     req.MaxOpenPerUser,
		NamingScheme:       req.NamingScheme,
		TicketTypes:        req.TicketTypes,
		BlacklistedUserIDs: req.BlacklistedUserIDs,
		SupportRoleIDs:     req.SupportRoleIDs,
		LogChannelID:       req.LogChannelID,
		DMNotifications:    req.DMNotifications,
		AutoCloseHours:     req.AutoCloseHours,
	}
	if existing != nil {
		cfg.APIKeyHash = existing.APIKeyHash
	}
	if req.APIKey != "" {
		hash, err := auth.HashAPIKey(req.APIKey, h.bcryptCost)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		cfg.APIKeyHash = hash
	}
	if err := h.configs.Upsert(c.UserContext(), cfg); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

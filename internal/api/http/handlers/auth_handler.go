package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// AuthHandler exchanges tenant API keys for admin session tokens.
type AuthHandler struct {
	configs repository.TenantConfigStore
	tokens  *auth.TokenManager
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(configs repository.TenantConfigStore, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{configs: configs, tokens: tokens}
}

// Exchange validates the tenant API key and mints a session JWT.
func (h *AuthHandler) Exchange(c *fiber.Ctx) error {
	var req dto.TokenExchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.TenantID == "" || req.APIKey == "" {
		return apperrors.NewValidationError("tenant_id and api_key are required", nil)
	}

	cfg, err := h.configs.Get(c.UserContext(), req.TenantID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if cfg == nil || cfg.APIKeyHash == "" {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.CompareAPIKey(cfg.APIKeyHash, req.APIKey); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.TenantID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(dto.TokenExchangeResponse{AccessToken: token, ExpiresAt: expiresAt})
}

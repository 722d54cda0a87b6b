package dto

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	UserID     string            `json:"user_id"`
	TypeKey    string            `json:"type_key"`
	FormInputs map[string]string `json:"form_inputs"`
}

// CreateTicketResponse payload.
type CreateTicketResponse struct {
	ChannelID string `json:"channel_id"`
}

// InteractionRequest carries a signed UI action from the platform gateway.
type InteractionRequest struct {
	TenantID string `json:"tenant_id"`
	ActorID  string `json:"actor_id"`
	Token    string `json:"token"`
	// TargetID names the new owner for transfer actions.
	TargetID string `json:"target_id,omitempty"`
	// Reason is attached to close actions.
	Reason string `json:"reason,omitempty"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	ClosedBy string `json:"closed_by"`
	Reason   string `json:"reason"`
}

// TransferTicketRequest payload.
type TransferTicketRequest struct {
	NewOwnerID string `json:"new_owner_id"`
	ExecutorID string `json:"executor_id"`
}

// ClaimTicketRequest payload.
type ClaimTicketRequest struct {
	StaffID string `json:"staff_id"`
}

// ActivityRequest marks channel activity for auto-close tracking.
type ActivityRequest struct {
	ChannelID string `json:"channel_id"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID                  string              `json:"id"`
	TenantID            string              `json:"tenant_id"`
	Seq                 int64               `json:"seq"`
	ChannelID           string              `json:"channel_id"`
	OpenerID            string              `json:"opener_id"`
	TypeKey             string              `json:"type_key"`
	Status              domain.TicketStatus `json:"status"`
	ClaimedBy           *string             `json:"claimed_by"`
	CreatedAt           time.Time           `json:"created_at"`
	LastActivityAt      time.Time           `json:"last_activity_at"`
	ClosedAt            *time.Time          `json:"closed_at"`
	CloseReason         *string             `json:"close_reason"`
	ClosedBy            *string             `json:"closed_by"`
	TranscriptSHA256    *string             `json:"transcript_sha256"`
	TranscriptSizeBytes *int64              `json:"transcript_size_bytes"`
	TranscriptPointer   *string             `json:"transcript_pointer"`
}

// FromTicket maps the domain aggregate to the response shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                  t.ID,
		TenantID:            t.TenantID,
		Seq:                 t.Seq,
		ChannelID:           t.ChannelID,
		OpenerID:            t.OpenerID,
		TypeKey:             t.TypeKey,
		Status:              t.Status,
		ClaimedBy:           t.ClaimedBy,
		CreatedAt:           t.CreatedAt,
		LastActivityAt:      t.LastActivityAt,
		ClosedAt:            t.ClosedAt,
		CloseReason:         t.CloseReason,
		ClosedBy:            t.ClosedBy,
		TranscriptSHA256:    t.TranscriptSHA256,
		TranscriptSizeBytes: t.TranscriptSizeBytes,
		TranscriptPointer:   t.TranscriptPointer,
	}
}

// ActionTokensResponse carries freshly minted action tokens keyed by
// action name.
type ActionTokensResponse struct {
	TicketID string            `json:"ticket_id"`
	Tokens   map[string]string `json:"tokens"`
}

// TokenExchangeRequest payload.
type TokenExchangeRequest struct {
	TenantID string `json:"tenant_id"`
	APIKey   string `json:"api_key"`
}

// TokenExchangeResponse payload.
type TokenExchangeResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TenantConfigRequest payload for config upserts.
type TenantConfigRequest struct {
	Enabled            bool                `json:"enabled"`
	CooldownSeconds    int                 `json:"cooldown_seconds"`
	MaxOpenPerUser     int                 `json:"max_open_per_user"`
	NamingScheme       string              `json:"naming_scheme"`
	TicketTypes        []domain.TicketType `json:"ticket_types"`
	BlacklistedUserIDs []string            `json:"blacklisted_user_ids"`
	SupportRoleIDs     []string            `json:"support_role_ids"`
	LogChannelID       string              `json:"log_channel_id"`
	DMNotifications    bool                `json:"dm_notifications"`
	AutoCloseHours     int                 `json:"auto_close_hours"`
	// APIKey, when present on an upsert, rotates the tenant's admin API
	// key. Never echoed back on reads.
	APIKey string `json:"api_key,omitempty"`
}

// Package platform defines the boundary to the external chat platform.
// The gateway connection and all UI rendering live outside this process;
// the engine only needs the handful of REST-shaped operations below.
package platform

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// ChannelSpec describes the channel to create for a new ticket. FormInputs
// are the opener's modal answers; the gateway renders them into the
// channel's opening message.
type ChannelSpec struct {
	Name           string            `json:"name"`
	Topic          string            `json:"topic"`
	CategoryID     string            `json:"category_id,omitempty"`
	OpenerID       string            `json:"opener_id"`
	SupportRoleIDs []string          `json:"support_role_ids"`
	FormInputs     map[string]string `json:"form_inputs,omitempty"`
}

// Message is one entry of a channel's history, oldest-first when returned
// from RenderHistory.
type Message struct {
	ID          string       `json:"id"`
	AuthorTag   string       `json:"author_tag"`
	AuthorID    string       `json:"author_id"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"created_at"`
	Attachments []Attachment `json:"attachments"`
	HasEmbeds   bool         `json:"has_embeds"`
}

// Attachment references an uploaded file; only metadata is carried, never
// the bytes.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ChannelOps is the platform collaborator for channel side effects.
// CreateChannel and DeleteChannel are only ever invoked from inside
// scheduled tasks; permission grants go direct.
type ChannelOps interface {
	CreateChannel(ctx context.Context, tenantID string, spec ChannelSpec) (string, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	RenderHistory(ctx context.Context, channelID string) ([]Message, error)
	GrantAccess(ctx context.Context, channelID, userID string) error
	LookupUserName(ctx context.Context, userID string) (string, error)
	NotifyUser(ctx context.Context, userID, message string) error
}

// TranscriptSink publishes a rendered transcript out-of-band (the tenant's
// log channel in the original deployment). Best-effort: the close flow
// logs failures and proceeds.
type TranscriptSink interface {
	Publish(ctx context.Context, tenantID string, record *domain.TranscriptRecord) (pointer string, err error)
}

package events

import "time"

// Kind enumerates audit event identifiers.
type Kind string

const (
	KindTicketCreated     Kind = "ticket_created"
	KindTicketClaimed     Kind = "ticket_claimed"
	KindTicketTransferred Kind = "ticket_transferred"
	KindTicketClosed      Kind = "ticket_closed"
)

// Event is one audit record emitted by the lifecycle engine.
type Event struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenant_id"`
	Kind      Kind        `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID   string            `json:"ticket_id"`
	OpenerID   string            `json:"opener_id"`
	ChannelID  string            `json:"channel_id"`
	TypeKey    string            `json:"type_key"`
	Seq        int64             `json:"seq"`
	FormInputs map[string]string `json:"form_inputs,omitempty"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	TicketID string `json:"ticket_id"`
	StaffID  string `json:"staff_id"`
}

// TicketTransferredPayload payload.
type TicketTransferredPayload struct {
	TicketID   string `json:"ticket_id"`
	ExecutorID string `json:"executor_id"`
	NewOwnerID string `json:"new_owner_id"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	TicketID            string `json:"ticket_id"`
	ClosedBy            string `json:"closed_by"`
	Reason              string `json:"reason"`
	TranscriptSHA256    string `json:"transcript_sha256"`
	TranscriptSizeBytes int64  `json:"transcript_size_bytes"`
}

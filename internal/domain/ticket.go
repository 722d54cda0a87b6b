package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// PendingChannelID marks a provisional record whose channel has not been
// created yet. A record stuck on this value after a failed creation is
// orphaned and left for operator cleanup.
const PendingChannelID = "PENDING"

// Ticket is the aggregate for one support-request lifecycle. Status is
// monotonic open->closed, ClaimedBy goes empty->staff via an atomic
// conditional write (transfers reassign it explicitly), and ChannelID is
// assigned exactly once after the scheduled channel creation confirms.
type Ticket struct {
	ID             string
	TenantID       string
	Seq            int64
	ChannelID      string
	OpenerID       string
	TypeKey        string
	Status         TicketStatus
	ClaimedBy      *string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ClosedAt       *time.Time
	CloseReason    *string
	ClosedBy       *string

	// Transcript metadata, computed by the close flow strictly before the
	// status flips to closed.
	TranscriptSHA256    *string
	TranscriptSizeBytes *int64
	TranscriptPointer   *string
}

// IsOpen reports whether the ticket is still actionable.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketStatusOpen
}

// Claimed reports whether a staff member owns the ticket.
func (t *Ticket) Claimed() bool {
	return t.ClaimedBy != nil && *t.ClaimedBy != ""
}

// Closure captures everything the close flow writes alongside the
// terminal status update.
type Closure struct {
	Reason              string
	ClosedBy            string
	ClosedAt            time.Time
	TranscriptSHA256    string
	TranscriptSizeBytes int64
	TranscriptPointer   *string
}

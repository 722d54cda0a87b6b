package domain

import "time"

// TranscriptRecord is the immutable rendering of a closed ticket's message
// history plus integrity metadata. Written once, never mutated.
type TranscriptRecord struct {
	TicketID    string
	Body        string
	SHA256      string
	SizeBytes   int64
	GeneratedAt time.Time
}

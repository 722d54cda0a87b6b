package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/platform"
	"github.com/spec-kit/ticket-engine/internal/schedule"
)

type transcriptFixture struct {
	svc      *TranscriptService
	tickets  *fakeTicketStore
	channels *fakeChannelOps
	sink     *fakeTranscriptSink
	audit    *captureSink
}

func newTranscriptFixture(t *testing.T) *transcriptFixture {
	t.Helper()

	sched := schedule.New(time.Millisecond, zap.NewNop())
	t.Cleanup(sched.Stop)

	f := &transcriptFixture{
		tickets:  newFakeTicketStore(),
		channels: newFakeChannelOps(),
		sink:     &fakeTranscriptSink{},
		audit:    &captureSink{},
	}
	f.svc = NewTranscriptService(TranscriptDependencies{
		TicketStore: f.tickets,
		Scheduler:   sched,
		ChannelOps:  f.channels,
		Sink:        f.sink,
		AuditSink:   f.audit,
		Metrics:     observability.NewMetrics(),
		Logger:      zap.NewNop(),
	})
	return f
}

func TestCloseHappyPath(t *testing.T) {
	f := newTranscriptFixture(t)
	ctx := context.Background()
	seedOpenTicket(t, f.tickets, "tkt-1")
	f.channels.history = []platform.Message{
		{AuthorTag: "alice#1", AuthorID: "u-alice", Content: "hello", CreatedAt: time.Now().Add(-time.Hour)},
		{AuthorTag: "bob#2", AuthorID: "u-bob", Content: "hi there", CreatedAt: time.Now()},
	}

	require.NoError(t, f.svc.Close(ctx, "tenant-a", "tkt-1", "staff-a", "resolved"))

	ticket, err := f.tickets.FindByID(ctx, "tkt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	require.NotNil(t, ticket.CloseReason)
	assert.Equal(t, "resolved", *ticket.CloseReason)
	require.NotNil(t, ticket.ClosedBy)
	assert.Equal(t, "staff-a", *ticket.ClosedBy)
	require.NotNil(t, ticket.TranscriptSHA256)
	assert.Len(t, *ticket.TranscriptSHA256, 64)
	require.NotNil(t, ticket.TranscriptSizeBytes)
	assert.Greater(t, *ticket.TranscriptSizeBytes, int64(0))
	require.NotNil(t, ticket.TranscriptPointer)
	assert.Equal(t, "log-msg-1", *ticket.TranscriptPointer)

	require.Len(t, f.sink.published, 1)
	assert.Contains(t, f.sink.published[0].Body, "hello")
	assert.Contains(t, f.sink.published[0].Body, "hi there")

	// Schedule blocks until the queued teardown ran.
	assert.Equal(t, []string{"chan-tkt-1"}, f.channels.deletedChannels())
	assert.Equal(t, []events.Kind{events.KindTicketClosed}, f.audit.kinds())
}

func TestCloseSurvivesSideEffectFailures(t *testing.T) {
	f := newTranscriptFixture(t)
	f.sink.fail = true
	f.channels.historyErr = errors.New("history unavailable")
	f.channels.deleteErr = errors.New("channel gone")
	ctx := context.Background()
	seedOpenTicket(t, f.tickets, "tkt-1")

	// Publish, history fetch and teardown all fail; the close still lands.
	require.NoError(t, f.svc.Close(ctx, "tenant-a", "tkt-1", "staff-a", "resolved"))

	ticket, err := f.tickets.FindByID(ctx, "tkt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	require.NotNil(t, ticket.TranscriptSHA256)
	assert.Len(t, *ticket.TranscriptSHA256, 64)
	require.NotNil(t, ticket.TranscriptSizeBytes)
	assert.Greater(t, *ticket.TranscriptSizeBytes, int64(0))
	assert.Nil(t, ticket.TranscriptPointer)
}

func TestCloseAlreadyClosed(t *testing.T) {
	f := newTranscriptFixture(t)
	ctx := context.Background()
	seedOpenTicket(t, f.tickets, "tkt-1")

	require.NoError(t, f.svc.Close(ctx, "tenant-a", "tkt-1", "staff-a", "resolved"))

	err := f.svc.Close(ctx, "tenant-a", "tkt-1", "staff-b", "again")
	requireDomainCode(t, err, "CONFLICT")

	// The first closure is untouched.
	ticket, err := f.tickets.FindByID(ctx, "tkt-1")
	require.NoError(t, err)
	assert.Equal(t, "resolved", *ticket.CloseReason)
	assert.Len(t, f.sink.published, 1)
}

func TestCloseScopedToTenant(t *testing.T) {
	f := newTranscriptFixture(t)
	ctx := context.Background()
	seedOpenTicket(t, f.tickets, "tkt-1")

	err := f.svc.Close(ctx, "tenant-b", "tkt-1", "staff-evil", "hijack")
	requireDomainCode(t, err, "NOT_FOUND")

	// Nothing happened: no transcript, no status change, no teardown.
	ticket, err := f.tickets.FindByID(ctx, "tkt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Empty(t, f.sink.published)
	assert.Empty(t, f.channels.deletedChannels())
	assert.Empty(t, f.audit.kinds())
}

func TestCloseMissingTicket(t *testing.T) {
	f := newTranscriptFixture(t)
	err := f.svc.Close(context.Background(), "tenant-a", "nope", "staff-a", "resolved")
	requireDomainCode(t, err, "NOT_FOUND")
}

func TestTranscriptRendering(t *testing.T) {
	f := newTranscriptFixture(t)
	fixed := time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	older := time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 4, 5, 11, 0, 0, 0, time.UTC)
	f.channels.history = []platform.Message{
		{AuthorTag: "alice#1", AuthorID: "u-alice", Content: "first message", CreatedAt: older,
			Attachments: []platform.Attachment{{Name: "log.txt", URL: "https://cdn.example/log.txt"}}},
		{AuthorTag: "bob#2", AuthorID: "u-bob", Content: "second message", CreatedAt: newer, HasEmbeds: true},
	}

	ticket := &domain.Ticket{
		ID:        "tkt-render",
		TenantID:  "tenant-a",
		ChannelID: "chan-x",
		OpenerID:  "user-1",
		CreatedAt: older,
	}
	record := f.svc.render(context.Background(), ticket, "staff-a", "resolved")

	assert.Contains(t, record.Body, "- **id:** tkt-render")
	assert.Contains(t, record.Body, "- **opener:** user-1")
	assert.Contains(t, record.Body, "- **closed by:** staff-a")
	assert.Contains(t, record.Body, "- **reason:** resolved")
	assert.Contains(t, record.Body, "- **closed:** 2024-04-05T12:00:00Z")
	assert.Contains(t, record.Body, "[2024-04-05T10:00:00Z] **alice#1 (u-alice)**: first message")
	assert.Contains(t, record.Body, "> [Attachment: log.txt](https://cdn.example/log.txt)")
	assert.Contains(t, record.Body, "> [Embed Content Hidden]")

	// History renders oldest-first.
	assert.Less(t,
		strings.Index(record.Body, "first message"),
		strings.Index(record.Body, "second message"))

	sum := sha256.Sum256([]byte(record.Body))
	assert.Equal(t, hex.EncodeToString(sum[:]), record.SHA256)
	assert.Equal(t, int64(len(record.Body)), record.SizeBytes)
	assert.Equal(t, "tkt-render", record.TicketID)
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/platform"
)

// fakeTicketStore is an in-memory TicketStore with the same atomicity
// guarantees the postgres implementation provides.
type fakeTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{tickets: make(map[string]*domain.Ticket)}
}

func (s *fakeTicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	ticket.CreatedAt = now
	ticket.LastActivityAt = now
	cp := *ticket
	s.tickets[ticket.ID] = &cp
	return nil
}

func (s *fakeTicketStore) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTicketStore) FindByChannelID(ctx context.Context, channelID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.ChannelID == channelID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeTicketStore) FindOpenByOpener(ctx context.Context, tenantID, openerID string) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, t := range s.tickets {
		if t.TenantID == tenantID && t.OpenerID == openerID && t.Status == domain.TicketStatusOpen {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (s *fakeTicketStore) FindLastByOpener(ctx context.Context, tenantID, openerID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *domain.Ticket
	for _, t := range s.tickets {
		if t.TenantID != tenantID || t.OpenerID != openerID {
			continue
		}
		if last == nil || t.CreatedAt.After(last.CreatedAt) {
			last = t
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (s *fakeTicketStore) FindStaleOpen(ctx context.Context, tenantID string, before time.Time) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, t := range s.tickets {
		if t.TenantID == tenantID && t.Status == domain.TicketStatusOpen && t.LastActivityAt.Before(before) {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (s *fakeTicketStore) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, closure *domain.Closure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	if closure != nil {
		t.CloseReason = &closure.Reason
		t.ClosedBy = &closure.ClosedBy
		t.ClosedAt = &closure.ClosedAt
		t.TranscriptSHA256 = &closure.TranscriptSHA256
		t.TranscriptSizeBytes = &closure.TranscriptSizeBytes
		t.TranscriptPointer = closure.TranscriptPointer
	}
	return nil
}

func (s *fakeTicketStore) SetClaim(ctx context.Context, id, staffID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if t.ClaimedBy != nil {
		return false, nil
	}
	t.ClaimedBy = &staffID
	return true, nil
}

func (s *fakeTicketStore) Transfer(ctx context.Context, id, newOwnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.ClaimedBy = &newOwnerID
	return nil
}

func (s *fakeTicketStore) SetChannel(ctx context.Context, id, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.ChannelID = channelID
	return nil
}

func (s *fakeTicketStore) TouchActivity(ctx context.Context, channelID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.ChannelID == channelID && t.Status == domain.TicketStatusOpen {
			t.LastActivityAt = at
		}
	}
	return nil
}

func (s *fakeTicketStore) CountOpen(ctx context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.tickets {
		if t.TenantID == tenantID && t.Status == domain.TicketStatusOpen {
			count++
		}
	}
	return count, nil
}

// setCreatedAt rewrites the creation timestamp, for cooldown tests.
func (s *fakeTicketStore) setCreatedAt(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[id]; ok {
		t.CreatedAt = at
	}
}

func (s *fakeTicketStore) setLastActivity(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[id]; ok {
		t.LastActivityAt = at
	}
}

// fakeConfigStore serves a fixed set of tenant configs.
type fakeConfigStore struct {
	mu      sync.Mutex
	configs map[string]*domain.TenantConfig
	seqs    map[string]int64
}

func newFakeConfigStore(configs ...*domain.TenantConfig) *fakeConfigStore {
	s := &fakeConfigStore{
		configs: make(map[string]*domain.TenantConfig),
		seqs:    make(map[string]int64),
	}
	for _, cfg := range configs {
		s.configs[cfg.TenantID] = cfg
	}
	return s
}

func (s *fakeConfigStore) Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[tenantID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

func (s *fakeConfigStore) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.configs[cfg.TenantID] = &cp
	return nil
}

func (s *fakeConfigStore) NextTicketSeq(ctx context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[tenantID]++
	return s.seqs[tenantID], nil
}

func (s *fakeConfigStore) ListAutoClose(ctx context.Context) ([]domain.TenantConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.TenantConfig
	for _, cfg := range s.configs {
		if cfg.Enabled && cfg.AutoCloseHours > 0 {
			result = append(result, *cfg)
		}
	}
	return result, nil
}

// fakeChannelOps records platform calls and can be told to fail.
type fakeChannelOps struct {
	mu         sync.Mutex
	created    []platform.ChannelSpec
	deleted    []string
	granted    []string
	notified   []string
	history    []platform.Message
	createErr  error
	deleteErr  error
	historyErr error
	grantErr   error
	lookupName string
	lookupErr  error
}

func newFakeChannelOps() *fakeChannelOps {
	return &fakeChannelOps{lookupName: "Some User"}
}

func (f *fakeChannelOps) CreateChannel(ctx context.Context, tenantID string, spec platform.ChannelSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, spec)
	return "chan-" + spec.Name, nil
}

func (f *fakeChannelOps) DeleteChannel(ctx context.Context, channelID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakeChannelOps) RenderHistory(ctx context.Context, channelID string) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeChannelOps) GrantAccess(ctx context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	f.granted = append(f.granted, channelID+"|"+userID)
	return nil
}

func (f *fakeChannelOps) LookupUserName(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.lookupName, nil
}

func (f *fakeChannelOps) NotifyUser(ctx context.Context, userID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, userID)
	return nil
}

func (f *fakeChannelOps) deletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.deleted...)
}

// fakeTranscriptSink captures published transcripts.
type fakeTranscriptSink struct {
	mu        sync.Mutex
	published []*domain.TranscriptRecord
	fail      bool
}

func (f *fakeTranscriptSink) Publish(ctx context.Context, tenantID string, record *domain.TranscriptRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("log channel unavailable")
	}
	f.published = append(f.published, record)
	return "log-msg-1", nil
}

// captureSink records emitted audit events.
type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureSink) Emit(ctx context.Context, event events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) Subscribe(kind events.Kind, handler events.Handler) {}

func (c *captureSink) recorded() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event{}, c.events...)
}

func (c *captureSink) kinds() []events.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kinds []events.Kind
	for _, e := range c.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

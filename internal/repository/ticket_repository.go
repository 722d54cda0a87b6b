package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// TicketStore encapsulates durable ticket records. Implementations must
// make SetClaim an atomic conditional write: application-level
// check-then-set is a race under concurrent claim clicks.
type TicketStore interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	FindByID(ctx context.Context, id string) (*domain.Ticket, error)
	FindByChannelID(ctx context.Context, channelID string) (*domain.Ticket, error)
	FindOpenByOpener(ctx context.Context, tenantID, openerID string) ([]domain.Ticket, error)
	FindLastByOpener(ctx context.Context, tenantID, openerID string) (*domain.Ticket, error)
	FindStaleOpen(ctx context.Context, tenantID string, lastActivityBefore time.Time) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, closure *domain.Closure) error
	// SetClaim assigns claimed_by only when currently unset. Returns false
	// without error when another writer won the race.
	SetClaim(ctx context.Context, id, staffID string) (bool, error)
	// Transfer reassigns claimed_by unconditionally.
	Transfer(ctx context.Context, id, newOwnerID string) error
	SetChannel(ctx context.Context, id, channelID string) error
	TouchActivity(ctx context.Context, channelID string, at time.Time) error
	CountOpen(ctx context.Context, tenantID string) (int, error)
}

type ticketStore struct {
	pool *pgxpool.Pool
}

// NewTicketStore instantiates the postgres-backed store.
func NewTicketStore(pool *pgxpool.Pool) TicketStore {
	return &ticketStore{pool: pool}
}

const ticketColumns = `id, tenant_id, seq, channel_id, opener_id, type_key, status, claimed_by,
               created_at, last_activity_at, closed_at, close_reason, closed_by,
               transcript_sha256, transcript_size_bytes, transcript_pointer`

func (r *ticketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, tenant_id, seq, channel_id, opener_id, type_key, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, last_activity_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.TenantID,
		ticket.Seq,
		ticket.ChannelID,
		ticket.OpenerID,
		ticket.TypeKey,
		ticket.Status,
	).Scan(&ticket.CreatedAt, &ticket.LastActivityAt)
}

func (r *ticketStore) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketStore) FindByChannelID(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=$1`
	return r.fetchSingle(ctx, query, channelID)
}

func (r *ticketStore) FindOpenByOpener(ctx context.Context, tenantID, openerID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE tenant_id=$1 AND opener_id=$2 AND status=$3
        ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, tenantID, openerID, domain.TicketStatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketStore) FindLastByOpener(ctx context.Context, tenantID, openerID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE tenant_id=$1 AND opener_id=$2
        ORDER BY created_at DESC LIMIT 1`
	ticket, err := r.fetchSingle(ctx, query, tenantID, openerID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return ticket, err
}

func (r *ticketStore) FindStaleOpen(ctx context.Context, tenantID string, lastActivityBefore time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE tenant_id=$1 AND status=$2 AND last_activity_at < $3`
	rows, err := r.pool.Query(ctx, query, tenantID, domain.TicketStatusOpen, lastActivityBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketStore) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, closure *domain.Closure) error {
	if closure == nil {
		const query = `UPDATE tickets SET status=$2 WHERE id=$1`
		cmd, err := r.pool.Exec(ctx, query, id, status)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	}

	const query = `
        UPDATE tickets SET status=$2, close_reason=$3, closed_by=$4, closed_at=$5,
            transcript_sha256=$6, transcript_size_bytes=$7, transcript_pointer=$8
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query,
		id,
		status,
		closure.Reason,
		closure.ClosedBy,
		closure.ClosedAt,
		closure.TranscriptSHA256,
		closure.TranscriptSizeBytes,
		closure.TranscriptPointer,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketStore) SetClaim(ctx context.Context, id, staffID string) (bool, error) {
	// First writer wins; losers see zero rows affected.
	const query = `UPDATE tickets SET claimed_by=$2 WHERE id=$1 AND claimed_by IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, staffID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketStore) Transfer(ctx context.Context, id, newOwnerID string) error {
	const query = `UPDATE tickets SET claimed_by=$2 WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, newOwnerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketStore) SetChannel(ctx context.Context, id, channelID string) error {
	const query = `UPDATE tickets SET channel_id=$2 WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, channelID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketStore) TouchActivity(ctx context.Context, channelID string, at time.Time) error {
	const query = `UPDATE tickets SET last_activity_at=$2 WHERE channel_id=$1 AND status=$3`
	_, err := r.pool.Exec(ctx, query, channelID, at, domain.TicketStatusOpen)
	return err
}

func (r *ticketStore) CountOpen(ctx context.Context, tenantID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE tenant_id=$1 AND status=$2`
	var count int
	err := r.pool.QueryRow(ctx, query, tenantID, domain.TicketStatusOpen).Scan(&count)
	return count, err
}

func (r *ticketStore) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.Seq,
		&ticket.ChannelID,
		&ticket.OpenerID,
		&ticket.TypeKey,
		&ticket.Status,
		&ticket.ClaimedBy,
		&ticket.CreatedAt,
		&ticket.LastActivityAt,
		&ticket.ClosedAt,
		&ticket.CloseReason,
		&ticket.ClosedBy,
		&ticket.TranscriptSHA256,
		&ticket.TranscriptSizeBytes,
		&ticket.TranscriptPointer,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TenantID,
			&ticket.Seq,
			&ticket.ChannelID,
			&ticket.OpenerID,
			&ticket.TypeKey,
			&ticket.Status,
			&ticket.ClaimedBy,
			&ticket.CreatedAt,
			&ticket.LastActivityAt,
			&ticket.ClosedAt,
			&ticket.CloseReason,
			&ticket.ClosedBy,
			&ticket.TranscriptSHA256,
			&ticket.TranscriptSizeBytes,
			&ticket.TranscriptPointer,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// TenantConfigStore provides per-tenant ticketing settings and the
// tenant-scoped ticket sequence counter.
type TenantConfigStore interface {
	// Get returns nil without error when the tenant has no configuration.
	Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
	Upsert(ctx context.Context, cfg *domain.TenantConfig) error
	// NextTicketSeq atomically increments and returns the tenant's
	// sequence number.
	NextTicketSeq(ctx context.Context, tenantID string) (int64, error)
	// ListAutoClose returns configs with a positive auto_close_hours.
	ListAutoClose(ctx context.Context) ([]domain.TenantConfig, error)
}

type tenantConfigStore struct {
	pool *pgxpool.Pool
}

// NewTenantConfigStore instantiates the postgres-backed store.
func NewTenantConfigStore(pool *pgxpool.Pool) TenantConfigStore {
	return &tenantConfigStore{pool: pool}
}

const configColumns = `tenant_id, enabled, cooldown_seconds, max_open_per_user, naming_scheme,
               ticket_types, blacklisted_user_ids, support_role_ids, log_channel_id,
               dm_notifications, auto_close_hours, ticket_seq, api_key_hash`

func (r *tenantConfigStore) Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	query := `SELECT ` + configColumns + ` FROM tenant_configs WHERE tenant_id=$1`
	cfg, err := scanConfig(r.pool.QueryRow(ctx, query, tenantID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

func (r *tenantConfigStore) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	types, err := json.Marshal(cfg.TicketTypes)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tenant_configs (tenant_id, enabled, cooldown_seconds, max_open_per_user,
            naming_scheme, ticket_types, blacklisted_user_ids, support_role_ids,
            log_channel_id, dm_notifications, auto_close_hours, api_key_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (tenant_id) DO UPDATE SET
            enabled=EXCLUDED.enabled,
            cooldown_seconds=EXCLUDED.cooldown_seconds,
            max_open_per_user=EXCLUDED.max_open_per_user,
            naming_scheme=EXCLUDED.naming_scheme,
            ticket_types=EXCLUDED.ticket_types,
            blacklisted_user_ids=EXCLUDED.blacklisted_user_ids,
            support_role_ids=EXCLUDED.support_role_ids,
            log_channel_id=EXCLUDED.log_channel_id,
            dm_notifications=EXCLUDED.dm_notifications,
            auto_close_hours=EXCLUDED.auto_close_hours,
            api_key_hash=EXCLUDED.api_key_hash`
	_, err = r.pool.Exec(ctx, query,
		cfg.TenantID,
		cfg.Enabled,
		cfg.CooldownSeconds,
		cfg.MaxOpenPerUser,
		cfg.NamingScheme,
		types,
		cfg.BlacklistedUserIDs,
		cfg.SupportRoleIDs,
		cfg.LogChannelID,
		cfg.DMNotifications,
		cfg.AutoCloseHours,
		cfg.APIKeyHash,
	)
	return err
}

func (r *tenantConfigStore) NextTicketSeq(ctx context.Context, tenantID string) (int64, error) {
	const query = `UPDATE tenant_configs SET ticket_seq = ticket_seq + 1 WHERE tenant_id=$1 RETURNING ticket_seq`
	var seq int64
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(&seq)
	return seq, err
}

func (r *tenantConfigStore) ListAutoClose(ctx context.Context) ([]domain.TenantConfig, error) {
	query := `SELECT ` + configColumns + ` FROM tenant_configs WHERE auto_close_hours > 0 AND enabled`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TenantConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cfg)
	}
	return result, rows.Err()
}

func scanConfig(row pgx.Row) (*domain.TenantConfig, error) {
	var cfg domain.TenantConfig
	var types []byte
	if err := row.Scan(
		&cfg.TenantID,
		&cfg.Enabled,
		&cfg.CooldownSeconds,
		&cfg.MaxOpenPerUser,
		&cfg.NamingScheme,
		&types,
		&cfg.BlacklistedUserIDs,
		&cfg.SupportRoleIDs,
		&cfg.LogChannelID,
		&cfg.DMNotifications,
		&cfg.AutoCloseHours,
		&cfg.TicketSeq,
		&cfg.APIKeyHash,
	); err != nil {
		return nil, err
	}
	if len(types) > 0 {
		if err := json.Unmarshal(types, &cfg.TicketTypes); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

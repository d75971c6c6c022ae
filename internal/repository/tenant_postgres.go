package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raadyn/kb-retrieval/internal/entity"
)

// TenantRepository defines the interface for tenant persistence
type TenantRepository interface {
	CreateTenant(ctx context.Context, tenant entity.Tenant) (*entity.Tenant, error)
	GetTenant(ctx context.Context, id string) (*entity.Tenant, error)
}

var _ TenantRepository = &TenantPostgres{}

// TenantPostgres implements TenantRepository using PostgreSQL
type TenantPostgres struct {
	db *pgxpool.Pool
}

func NewTenantPostgres(db *pgxpool.Pool) *TenantPostgres {
	return &TenantPostgres{db: db}
}

func (r *TenantPostgres) CreateTenant(ctx context.Context, tenant entity.Tenant) (*entity.Tenant, error) {
	configJSON, err := json.Marshal(tenant.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal tenant config: %w", err)
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, topics, config)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, topics, config, created_at, updated_at`,
		tenant.ID, tenant.Name, tenant.Topics, configJSON,
	)

	created, err := scanTenant(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, entity.ErrTenantExists
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	return created, nil
}

func (r *TenantPostgres) GetTenant(ctx context.Context, id string) (*entity.Tenant, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, topics, config, created_at, updated_at
		 FROM tenants WHERE id = $1`,
		id,
	)

	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}

	return tenant, nil
}

func scanTenant(row pgx.Row) (*entity.Tenant, error) {
	var (
		tenant     entity.Tenant
		configJSON []byte
	)

	err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Topics, &configJSON, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &tenant.Config); err != nil {
			return nil, fmt.Errorf("unmarshal tenant config: %w", err)
		}
	}

	return &tenant, nil
}

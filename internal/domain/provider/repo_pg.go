package provider

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccdstore/ccdstore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const providerColumns = `id, name, COALESCE(given_name, ''), COALESCE(family_name, ''),
	COALESCE(credentials, ''), COALESCE(npi, ''), COALESCE(specialty, ''),
	COALESCE(organization, ''), normalized_key, entity_type, created_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.GivenName, &p.FamilyName,
		&p.Credentials, &p.NPI, &p.Specialty,
		&p.Organization, &p.NormalizedKey, &p.EntityType, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetByNormalizedKey(ctx context.Context, key string) (*Provider, error) {
	p, err := scanProvider(r.conn(ctx).QueryRow(ctx,
		`SELECT `+providerColumns+` FROM provider WHERE normalized_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Provider, error) {
	return scanProvider(r.conn(ctx).QueryRow(ctx,
		`SELECT `+providerColumns+` FROM provider WHERE id = $1`, id))
}

func (r *repoPG) Create(ctx context.Context, p *Provider) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO provider (
			name, given_name, family_name, credentials,
			npi, specialty, organization, normalized_key, entity_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		p.Name, nullif(p.GivenName), nullif(p.FamilyName), nullif(p.Credentials),
		nullif(p.NPI), nullif(p.Specialty), nullif(p.Organization), p.NormalizedKey, p.EntityType,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM provider`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+providerColumns+` FROM provider ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var providers []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, err
		}
		providers = append(providers, p)
	}
	return providers, total, rows.Err()
}

// nullif maps empty strings to SQL NULL.
func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

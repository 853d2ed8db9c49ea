package patient

import (
	"context"
	"errors"
	"fmt"

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

const patientColumns = `id, COALESCE(given_name, ''), COALESCE(family_name, ''),
	COALESCE(birth_date, ''), COALESCE(gender, ''), COALESCE(source_file, ''), data_source_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.GivenName, &p.FamilyName,
		&p.BirthDate, &p.Gender, &p.SourceFile, &p.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetByIdentity(ctx context.Context, given, family, birthDate string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientColumns+` FROM patient
		WHERE COALESCE(given_name, '') = $1
		  AND COALESCE(family_name, '') = $2
		  AND COALESCE(birth_date, '') = $3`,
		given, family, birthDate))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (given_name, family_name, birth_date, gender, source_file, data_source_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		nullif(p.GivenName), nullif(p.FamilyName), nullif(p.BirthDate),
		nullif(p.Gender), nullif(p.SourceFile), p.DataSourceID,
	).Scan(&p.ID)
}

// UpdateDetails sets only the columns with non-empty values. No-op when all
// are empty.
func (r *repoPG) UpdateDetails(ctx context.Context, id int64, gender, sourceFile string, dataSourceID *int64) error {
	sets := ""
	var args []interface{}
	add := func(column string, value interface{}) {
		if sets != "" {
			sets += ", "
		}
		args = append(args, value)
		sets += fmt.Sprintf("%s = $%d", column, len(args))
	}
	if gender != "" {
		add("gender", gender)
	}
	if sourceFile != "" {
		add("source_file", sourceFile)
	}
	if dataSourceID != nil {
		add("data_source_id", *dataSourceID)
	}
	if sets == "" {
		return nil
	}
	args = append(args, id)
	_, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf("UPDATE patient SET %s WHERE id = $%d", sets, len(args)), args...)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientColumns+` FROM patient
		ORDER BY COALESCE(family_name, ''), COALESCE(given_name, ''), id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package immunization

import (
	"context"

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

func (r *repoPG) ExistingKeys(ctx context.Context, patientID int64) (map[Key]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT COALESCE(cvx_code, ''), COALESCE(date_administered, '')
		FROM immunization WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[Key]bool)
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.CVXCode, &k.DateAdministered); err != nil {
			return nil, err
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, i *Immunization) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO immunization (
			patient_id, vaccine_name, cvx_code, date_administered,
			status, lot_number, notes, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		i.PatientID, nullif(i.VaccineName), nullif(i.CVXCode), nullif(i.DateAdministered),
		nullif(i.Status), nullif(i.LotNumber), nullif(i.Notes), i.DataSourceID,
	).Scan(&i.ID)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Immunization, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, COALESCE(vaccine_name, ''), COALESCE(cvx_code, ''),
			COALESCE(date_administered, ''), COALESCE(status, ''),
			COALESCE(lot_number, ''), COALESCE(notes, ''), data_source_id
		FROM immunization
		WHERE patient_id = $1
		ORDER BY COALESCE(date_administered, '') DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var immunizations []*Immunization
	for rows.Next() {
		var i Immunization
		err := rows.Scan(&i.ID, &i.PatientID, &i.VaccineName, &i.CVXCode,
			&i.DateAdministered, &i.Status, &i.LotNumber, &i.Notes, &i.DataSourceID)
		if err != nil {
			return nil, err
		}
		immunizations = append(immunizations, &i)
	}
	return immunizations, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package vital

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

const vitalColumns = `id, patient_id, encounter_id, COALESCE(vital_type, ''),
	value, COALESCE(unit, ''), COALESCE(date, ''), data_source_id`

func scanVital(row pgx.Row) (*Vital, error) {
	var v Vital
	err := row.Scan(&v.ID, &v.PatientID, &v.EncounterID, &v.VitalType,
		&v.Value, &v.Unit, &v.Date, &v.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts through the natural-key index without aborting the
// enclosing transaction on a duplicate.
func (r *repoPG) Create(ctx context.Context, v *Vital) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vital (patient_id, encounter_id, vital_type, value, unit, date, data_source_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id, COALESCE(vital_type, ''), COALESCE(date, ''), value)
		DO NOTHING
		RETURNING id`,
		v.PatientID, v.EncounterID, nullif(v.VitalType), v.Value,
		nullif(v.Unit), nullif(v.Date), v.DataSourceID,
	).Scan(&v.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) BackfillSource(ctx context.Context, v *Vital) error {
	if v.DataSourceID == nil {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE vital SET data_source_id = $1
		WHERE data_source_id IS NULL
			AND patient_id = $2
			AND COALESCE(vital_type, '') = $3
			AND COALESCE(date, '') = $4
			AND value = $5`,
		v.DataSourceID, v.PatientID, v.VitalType, v.Date, v.Value)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Vital, error) {
	return r.query(ctx, `
		SELECT `+vitalColumns+` FROM vital
		WHERE patient_id = $1
		ORDER BY COALESCE(date, '') DESC, id`, patientID)
}

func (r *repoPG) Series(ctx context.Context, patientID int64, vitalType string) ([]*Vital, error) {
	return r.query(ctx, `
		SELECT `+vitalColumns+` FROM vital
		WHERE patient_id = $1 AND COALESCE(vital_type, '') = $2
		ORDER BY COALESCE(date, ''), id`, patientID, vitalType)
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Vital, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vitals []*Vital
	for rows.Next() {
		v, err := scanVital(rows)
		if err != nil {
			return nil, err
		}
		vitals = append(vitals, v)
	}
	return vitals, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package medication

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

func (r *repoPG) ExistingKeys(ctx context.Context, patientID int64) (map[Key]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT COALESCE(encounter_id, -1), name, COALESCE(dose, ''), COALESCE(start_date, '')
		FROM medication WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[Key]bool)
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.EncounterID, &k.Name, &k.Dose, &k.StartDate); err != nil {
			return nil, err
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

// Create inserts through the natural-key index without aborting the
// enclosing transaction on a duplicate.
func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication (
			patient_id, encounter_id, name, dose, route,
			frequency, start_date, end_date, status, notes, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (patient_id, COALESCE(encounter_id, -1), name, COALESCE(dose, ''), COALESCE(start_date, ''))
		DO NOTHING
		RETURNING id`,
		m.PatientID, m.EncounterID, m.Name, nullif(m.Dose), nullif(m.Route),
		nullif(m.Frequency), nullif(m.StartDate), nullif(m.EndDate),
		nullif(m.Status), nullif(m.Notes), m.DataSourceID,
	).Scan(&m.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) BackfillSource(ctx context.Context, m *Medication) error {
	if m.DataSourceID == nil {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication SET data_source_id = $1
		WHERE data_source_id IS NULL
			AND patient_id = $2
			AND COALESCE(encounter_id, -1) = COALESCE($3, -1)
			AND name = $4
			AND COALESCE(dose, '') = $5
			AND COALESCE(start_date, '') = $6`,
		m.DataSourceID, m.PatientID, m.EncounterID, m.Name, m.Dose, m.StartDate)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Medication, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, encounter_id, name, COALESCE(dose, ''), COALESCE(route, ''),
			COALESCE(frequency, ''), COALESCE(start_date, ''), COALESCE(end_date, ''),
			COALESCE(status, ''), COALESCE(notes, ''), data_source_id
		FROM medication
		WHERE patient_id = $1
		ORDER BY COALESCE(start_date, '') DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []*Medication
	for rows.Next() {
		var m Medication
		err := rows.Scan(&m.ID, &m.PatientID, &m.EncounterID, &m.Name, &m.Dose, &m.Route,
			&m.Frequency, &m.StartDate, &m.EndDate, &m.Status, &m.Notes, &m.DataSourceID)
		if err != nil {
			return nil, err
		}
		meds = append(meds, &m)
	}
	return meds, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

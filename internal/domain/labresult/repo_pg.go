package labresult

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

const labColumns = `id, patient_id, encounter_id, loinc_code, COALESCE(test_name, ''),
	COALESCE(result_value, ''), COALESCE(unit, ''), COALESCE(reference_range, ''),
	COALESCE(abnormal_flag, ''), COALESCE(date, ''),
	ordering_provider_id, performing_org_id, data_source_id`

func scanLabResult(row pgx.Row) (*LabResult, error) {
	var l LabResult
	err := row.Scan(&l.ID, &l.PatientID, &l.EncounterID, &l.LOINCCode, &l.TestName,
		&l.ResultValue, &l.Unit, &l.ReferenceRange,
		&l.AbnormalFlag, &l.Date,
		&l.OrderingProviderID, &l.PerformingOrgID, &l.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repoPG) ExistingKeys(ctx context.Context, patientID int64) (map[Key]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT COALESCE(date, ''), COALESCE(encounter_id, -1), loinc_code
		FROM lab_result WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[Key]bool)
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Date, &k.EncounterID, &k.LOINCCode); err != nil {
			return nil, err
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

// Create inserts through the natural-key index without aborting the
// enclosing transaction on a duplicate.
func (r *repoPG) Create(ctx context.Context, l *LabResult) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_result (
			patient_id, encounter_id, loinc_code, test_name, result_value,
			unit, reference_range, abnormal_flag, date,
			ordering_provider_id, performing_org_id, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (patient_id, COALESCE(date, ''), COALESCE(encounter_id, -1), loinc_code)
		DO NOTHING
		RETURNING id`,
		l.PatientID, l.EncounterID, l.LOINCCode, nullif(l.TestName), nullif(l.ResultValue),
		nullif(l.Unit), nullif(l.ReferenceRange), nullif(l.AbnormalFlag), nullif(l.Date),
		l.OrderingProviderID, l.PerformingOrgID, l.DataSourceID,
	).Scan(&l.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) BackfillSource(ctx context.Context, l *LabResult) error {
	if l.DataSourceID == nil {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_result SET data_source_id = $1
		WHERE data_source_id IS NULL
			AND patient_id = $2
			AND COALESCE(date, '') = $3
			AND COALESCE(encounter_id, -1) = COALESCE($4, -1)
			AND loinc_code = $5`,
		l.DataSourceID, l.PatientID, l.Date, l.EncounterID, l.LOINCCode)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*LabResult, error) {
	return r.query(ctx, `
		SELECT `+labColumns+` FROM lab_result
		WHERE patient_id = $1
		ORDER BY COALESCE(date, '') DESC, id`, patientID)
}

func (r *repoPG) Series(ctx context.Context, patientID int64, loincCode string) ([]*LabResult, error) {
	return r.query(ctx, `
		SELECT `+labColumns+` FROM lab_result
		WHERE patient_id = $1 AND loinc_code = $2
		ORDER BY COALESCE(date, ''), id`, patientID, loincCode)
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*LabResult, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*LabResult
	for rows.Next() {
		l, err := scanLabResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

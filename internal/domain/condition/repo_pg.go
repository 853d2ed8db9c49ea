package condition

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

const conditionColumns = `id, patient_id, encounter_id, provider_id, name,
	COALESCE(onset_date, ''), COALESCE(status, ''), COALESCE(notes, ''),
	COALESCE(code, ''), COALESCE(code_system, ''), COALESCE(code_display, ''), data_source_id`

func scanCondition(row pgx.Row) (*Condition, error) {
	var c Condition
	err := row.Scan(&c.ID, &c.PatientID, &c.EncounterID, &c.ProviderID, &c.Name,
		&c.OnsetDate, &c.Status, &c.Notes,
		&c.Code, &c.CodeSystem, &c.CodeDisplay, &c.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) GetByNaturalKey(ctx context.Context, patientID int64, name, code, onsetDate string) (*Condition, error) {
	c, err := scanCondition(r.conn(ctx).QueryRow(ctx, `
		SELECT `+conditionColumns+` FROM condition
		WHERE patient_id = $1
		  AND COALESCE(name, '') = $2
		  AND COALESCE(code, '') = $3
		  AND COALESCE(onset_date, '') = $4`,
		patientID, name, code, onsetDate))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *repoPG) Create(ctx context.Context, c *Condition) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO condition (
			patient_id, encounter_id, provider_id, name, onset_date,
			status, notes, code, code_system, code_display, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		c.PatientID, c.EncounterID, c.ProviderID, c.Name, nullif(c.OnsetDate),
		nullif(c.Status), nullif(c.Notes), nullif(c.Code), nullif(c.CodeSystem),
		nullif(c.CodeDisplay), c.DataSourceID,
	).Scan(&c.ID)
}

// UpdateDetails sets only the columns with non-zero values. No-op when all
// are zero.
func (r *repoPG) UpdateDetails(ctx context.Context, id int64, status, notes string, providerID, encounterID *int64) error {
	sets := ""
	var args []interface{}
	add := func(column string, value interface{}) {
		if sets != "" {
			sets += ", "
		}
		args = append(args, value)
		sets += fmt.Sprintf("%s = $%d", column, len(args))
	}
	if status != "" {
		add("status", status)
	}
	if notes != "" {
		add("notes", notes)
	}
	if providerID != nil {
		add("provider_id", *providerID)
	}
	if encounterID != nil {
		add("encounter_id", *encounterID)
	}
	if sets == "" {
		return nil
	}
	args = append(args, id)
	_, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf("UPDATE condition SET %s WHERE id = $%d", sets, len(args)), args...)
	return err
}

func (r *repoPG) AddCode(ctx context.Context, code *Code) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO condition_code (condition_id, code, code_system, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (condition_id, code, code_system) DO NOTHING`,
		code.ConditionID, code.Code, code.CodeSystem, nullif(code.DisplayName))
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Condition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+conditionColumns+` FROM condition
		WHERE patient_id = $1
		ORDER BY COALESCE(onset_date, '') DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conditions []*Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, c)
	}
	return conditions, rows.Err()
}

func (r *repoPG) ListCodes(ctx context.Context, conditionID int64) ([]*Code, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT condition_id, code, code_system, COALESCE(display_name, '')
		FROM condition_code
		WHERE condition_id = $1
		ORDER BY code, code_system`, conditionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*Code
	for rows.Next() {
		var c Code
		if err := rows.Scan(&c.ConditionID, &c.Code, &c.CodeSystem, &c.DisplayName); err != nil {
			return nil, err
		}
		codes = append(codes, &c)
	}
	return codes, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

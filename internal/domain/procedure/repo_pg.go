package procedure

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

const procedureColumns = `id, patient_id, encounter_id, provider_id, name,
	COALESCE(code, ''), COALESCE(code_system, ''), COALESCE(code_display, ''),
	COALESCE(status, ''), COALESCE(date, ''), COALESCE(notes, ''), data_source_id`

func scanProcedure(row pgx.Row) (*Procedure, error) {
	var p Procedure
	err := row.Scan(&p.ID, &p.PatientID, &p.EncounterID, &p.ProviderID, &p.Name,
		&p.Code, &p.CodeSystem, &p.CodeDisplay,
		&p.Status, &p.Date, &p.Notes, &p.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetByNaturalKey(ctx context.Context, patientID int64, name, code, date string) (*Procedure, error) {
	p, err := scanProcedure(r.conn(ctx).QueryRow(ctx, `
		SELECT `+procedureColumns+` FROM procedure
		WHERE patient_id = $1
		  AND COALESCE(name, '') = $2
		  AND COALESCE(code, '') = $3
		  AND COALESCE(date, '') = $4`,
		patientID, name, code, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) Create(ctx context.Context, p *Procedure) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO procedure (
			patient_id, encounter_id, provider_id, name, code,
			code_system, code_display, status, date, notes, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		p.PatientID, p.EncounterID, p.ProviderID, p.Name, nullif(p.Code),
		nullif(p.CodeSystem), nullif(p.CodeDisplay), nullif(p.Status),
		nullif(p.Date), nullif(p.Notes), p.DataSourceID,
	).Scan(&p.ID)
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
		fmt.Sprintf("UPDATE procedure SET %s WHERE id = $%d", sets, len(args)), args...)
	return err
}

func (r *repoPG) AddCode(ctx context.Context, code *Code) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO procedure_code (procedure_id, code, code_system, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (procedure_id, code, code_system) DO NOTHING`,
		code.ProcedureID, code.Code, code.CodeSystem, nullif(code.DisplayName))
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Procedure, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+procedureColumns+` FROM procedure
		WHERE patient_id = $1
		ORDER BY COALESCE(date, '') DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var procedures []*Procedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, err
		}
		procedures = append(procedures, p)
	}
	return procedures, rows.Err()
}

func (r *repoPG) ListCodes(ctx context.Context, procedureID int64) ([]*Code, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT procedure_id, code, code_system, COALESCE(display_name, '')
		FROM procedure_code
		WHERE procedure_id = $1
		ORDER BY code, code_system`, procedureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*Code
	for rows.Next() {
		var c Code
		if err := rows.Scan(&c.ProcedureID, &c.Code, &c.CodeSystem, &c.DisplayName); err != nil {
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

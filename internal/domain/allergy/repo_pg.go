package allergy

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

const allergyColumns = `id, patient_id, encounter_id, provider_id,
	COALESCE(substance, ''), COALESCE(substance_code, ''),
	COALESCE(substance_code_system, ''), COALESCE(substance_code_display, ''),
	COALESCE(reaction, ''), COALESCE(reaction_code, ''), COALESCE(reaction_code_system, ''),
	COALESCE(severity, ''), COALESCE(criticality, ''), COALESCE(status, ''),
	COALESCE(onset_date, ''), COALESCE(noted_date, ''),
	COALESCE(source_allergy_id, ''), COALESCE(notes, ''), data_source_id`

func scanAllergy(row pgx.Row) (*Allergy, error) {
	var a Allergy
	err := row.Scan(&a.ID, &a.PatientID, &a.EncounterID, &a.ProviderID,
		&a.Substance, &a.SubstanceCode,
		&a.SubstanceCodeSystem, &a.SubstanceCodeDisplay,
		&a.Reaction, &a.ReactionCode, &a.ReactionCodeSystem,
		&a.Severity, &a.Criticality, &a.Status,
		&a.OnsetDate, &a.NotedDate,
		&a.SourceAllergyID, &a.Notes, &a.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) GetByNaturalKey(ctx context.Context, patientID int64, substanceCode, substance, onsetDate, status string) (*Allergy, error) {
	a, err := scanAllergy(r.conn(ctx).QueryRow(ctx, `
		SELECT `+allergyColumns+` FROM allergy
		WHERE patient_id = $1
		  AND COALESCE(substance_code, '') = $2
		  AND COALESCE(substance, '') = $3
		  AND COALESCE(onset_date, '') = $4
		  AND COALESCE(status, '') = $5`,
		patientID, substanceCode, substance, onsetDate, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *repoPG) Create(ctx context.Context, a *Allergy) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO allergy (
			patient_id, encounter_id, provider_id, substance, substance_code,
			substance_code_system, substance_code_display, reaction, reaction_code,
			reaction_code_system, severity, criticality, status, onset_date,
			noted_date, source_allergy_id, notes, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`,
		a.PatientID, a.EncounterID, a.ProviderID, nullif(a.Substance), nullif(a.SubstanceCode),
		nullif(a.SubstanceCodeSystem), nullif(a.SubstanceCodeDisplay), nullif(a.Reaction), nullif(a.ReactionCode),
		nullif(a.ReactionCodeSystem), nullif(a.Severity), nullif(a.Criticality), nullif(a.Status), nullif(a.OnsetDate),
		nullif(a.NotedDate), nullif(a.SourceAllergyID), nullif(a.Notes), a.DataSourceID,
	).Scan(&a.ID)
}

func (r *repoPG) Update(ctx context.Context, id int64, u Updates) error {
	sets := ""
	var args []interface{}
	add := func(column string, value interface{}) {
		if sets != "" {
			sets += ", "
		}
		args = append(args, value)
		sets += fmt.Sprintf("%s = $%d", column, len(args))
	}
	for _, col := range []struct {
		name  string
		value string
	}{
		{"severity", u.Severity},
		{"reaction", u.Reaction},
		{"notes", u.Notes},
		{"criticality", u.Criticality},
		{"status", u.Status},
		{"noted_date", u.NotedDate},
		{"source_allergy_id", u.SourceAllergyID},
		{"reaction_code", u.ReactionCode},
		{"reaction_code_system", u.ReactionCodeSystem},
	} {
		if col.value != "" {
			add(col.name, col.value)
		}
	}
	if u.ProviderID != nil {
		add("provider_id", *u.ProviderID)
	}
	if u.EncounterID != nil {
		add("encounter_id", *u.EncounterID)
	}
	if u.DataSourceID != nil {
		add("data_source_id", *u.DataSourceID)
	}
	if sets == "" {
		return nil
	}
	args = append(args, id)
	_, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf("UPDATE allergy SET %s WHERE id = $%d", sets, len(args)), args...)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Allergy, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+allergyColumns+` FROM allergy
		WHERE patient_id = $1
		ORDER BY COALESCE(substance, ''), id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allergies []*Allergy
	for rows.Next() {
		a, err := scanAllergy(rows)
		if err != nil {
			return nil, err
		}
		allergies = append(allergies, a)
	}
	return allergies, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package encounter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccdstore/ccdstore/internal/platform/ccd"
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

func fetchID(ctx context.Context, q queryable, sql string, args ...interface{}) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// runQuery tries the provider-qualified variant of a tier first, then the
// unqualified query.
func runQuery(ctx context.Context, q queryable, baseSQL, orderClause string, args []interface{}, providerID *int64) (int64, error) {
	if providerID != nil {
		qualified := fmt.Sprintf("%s AND COALESCE(provider_id, -1) = COALESCE($%d, -1)%s",
			baseSQL, len(args)+1, orderClause)
		id, err := fetchID(ctx, q, qualified, append(append([]interface{}{}, args...), *providerID)...)
		if err != nil || id != 0 {
			return id, err
		}
	}
	return fetchID(ctx, q, baseSQL+orderClause, args...)
}

func (r *repoPG) FindID(ctx context.Context, patientID int64, encounterDate string, providerID *int64, sourceEncounterID string) (int64, error) {
	return findID(ctx, r.conn(ctx), patientID, encounterDate, providerID, sourceEncounterID)
}

// findID walks the match tiers from most to least specific: source id with
// exact date, source id within the same day, exact date, same day, then the
// provider's latest encounter. Each tier prefers a provider-qualified hit.
func findID(ctx context.Context, q queryable, patientID int64, encounterDate string, providerID *int64, sourceEncounterID string) (int64, error) {
	encounterDay := ccd.DayPrefix(encounterDate)

	if sourceEncounterID != "" {
		baseSQL := `
			SELECT id FROM encounter
			 WHERE patient_id = $1
			   AND COALESCE(source_encounter_id, '') = $2`
		args := []interface{}{patientID, sourceEncounterID}
		if encounterDate != "" {
			baseSQL += ` AND COALESCE(encounter_date, '') = $3`
			args = append(args, encounterDate)
		}
		id, err := runQuery(ctx, q, baseSQL, ` ORDER BY encounter_date DESC, id DESC LIMIT 1`, args, providerID)
		if err != nil || id != 0 {
			return id, err
		}

		if encounterDay != "" {
			baseSQL = `
				SELECT id FROM encounter
				 WHERE patient_id = $1
				   AND COALESCE(source_encounter_id, '') = $2
				   AND substring(COALESCE(encounter_date, ''), 1, 8) = $3`
			id, err = runQuery(ctx, q, baseSQL, ` ORDER BY encounter_date DESC, id DESC LIMIT 1`,
				[]interface{}{patientID, sourceEncounterID, encounterDay}, providerID)
			if err != nil || id != 0 {
				return id, err
			}
		}
	}

	if encounterDate != "" {
		baseSQL := `
			SELECT id FROM encounter
			 WHERE patient_id = $1
			   AND COALESCE(encounter_date, '') = $2`
		id, err := runQuery(ctx, q, baseSQL, ` ORDER BY id DESC LIMIT 1`,
			[]interface{}{patientID, encounterDate}, providerID)
		if err != nil || id != 0 {
			return id, err
		}
	}

	if encounterDay != "" {
		baseSQL := `
			SELECT id FROM encounter
			 WHERE patient_id = $1
			   AND substring(COALESCE(encounter_date, ''), 1, 8) = $2`
		id, err := runQuery(ctx, q, baseSQL, ` ORDER BY encounter_date DESC, id DESC LIMIT 1`,
			[]interface{}{patientID, encounterDay}, providerID)
		if err != nil || id != 0 {
			return id, err
		}
	}

	// Last resort: the provider's most recent encounter for this patient.
	if providerID != nil {
		return runQuery(ctx, q, `SELECT id FROM encounter WHERE patient_id = $1`,
			` ORDER BY encounter_date DESC, id DESC LIMIT 1`, []interface{}{patientID}, providerID)
	}

	return 0, nil
}

const encounterColumns = `id, patient_id, COALESCE(encounter_date, ''), provider_id,
	COALESCE(source_encounter_id, ''), COALESCE(encounter_type, ''), COALESCE(notes, ''),
	COALESCE(reason_for_visit, ''), data_source_id`

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.ID, &e.PatientID, &e.EncounterDate, &e.ProviderID,
		&e.SourceEncounterID, &e.EncounterType, &e.Notes,
		&e.ReasonForVisit, &e.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) GetByNaturalKey(ctx context.Context, patientID int64, encounterDate string, providerID *int64, sourceEncounterID string) (*Encounter, error) {
	e, err := scanEncounter(r.conn(ctx).QueryRow(ctx, `
		SELECT `+encounterColumns+` FROM encounter
		 WHERE patient_id = $1
		   AND COALESCE(encounter_date, '') = $2
		   AND COALESCE(provider_id, -1) = COALESCE($3, -1)
		   AND COALESCE(source_encounter_id, '') = $4`,
		patientID, encounterDate, providerID, sourceEncounterID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *repoPG) Create(ctx context.Context, e *Encounter) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounter (
			patient_id, encounter_date, provider_id, source_encounter_id,
			encounter_type, notes, reason_for_visit, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		e.PatientID, nullif(e.EncounterDate), e.ProviderID, nullif(e.SourceEncounterID),
		nullif(e.EncounterType), nullif(e.Notes), nullif(e.ReasonForVisit), e.DataSourceID,
	).Scan(&e.ID)
}

// UpdateDetails sets only the columns with non-empty values. No-op when all
// are empty.
func (r *repoPG) UpdateDetails(ctx context.Context, id int64, encounterType, notes, reasonForVisit string) error {
	sets := ""
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		if sets != "" {
			sets += ", "
		}
		args = append(args, value)
		sets += fmt.Sprintf("%s = $%d", column, len(args))
	}
	add("encounter_type", encounterType)
	add("notes", notes)
	add("reason_for_visit", reasonForVisit)
	if sets == "" {
		return nil
	}
	args = append(args, id)
	_, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf("UPDATE encounter SET %s WHERE id = $%d", sets, len(args)), args...)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Encounter, error) {
	return scanEncounter(r.conn(ctx).QueryRow(ctx,
		`SELECT `+encounterColumns+` FROM encounter WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Encounter, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+encounterColumns+` FROM encounter
		 WHERE patient_id = $1
		 ORDER BY encounter_date DESC, id DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var encounters []*Encounter
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, err
		}
		encounters = append(encounters, e)
	}
	return encounters, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

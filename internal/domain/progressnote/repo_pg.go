package progressnote

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

// Create inserts through the natural-key index without aborting the
// enclosing transaction on a duplicate.
func (r *repoPG) Create(ctx context.Context, n *Note) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO progress_note (
			patient_id, encounter_id, provider_id, note_title,
			note_datetime, note_text, note_hash, source_note_id, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, note_hash, COALESCE(note_title, ''), COALESCE(note_datetime, ''))
		DO NOTHING
		RETURNING id`,
		n.PatientID, n.EncounterID, n.ProviderID, nullif(n.NoteTitle),
		nullif(n.NoteDatetime), n.NoteText, n.NoteHash, nullif(n.SourceNoteID), n.DataSourceID,
	).Scan(&n.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) BackfillSource(ctx context.Context, n *Note) error {
	if n.DataSourceID == nil {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE progress_note SET data_source_id = $1
		WHERE data_source_id IS NULL
			AND patient_id = $2
			AND note_hash = $3
			AND COALESCE(note_title, '') = $4
			AND COALESCE(note_datetime, '') = $5`,
		n.DataSourceID, n.PatientID, n.NoteHash, n.NoteTitle, n.NoteDatetime)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, encounter_id, provider_id, COALESCE(note_title, ''),
			COALESCE(note_datetime, ''), note_text, note_hash,
			COALESCE(source_note_id, ''), data_source_id
		FROM progress_note
		WHERE patient_id = $1
		ORDER BY COALESCE(note_datetime, '') DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var n Note
		err := rows.Scan(&n.ID, &n.PatientID, &n.EncounterID, &n.ProviderID, &n.NoteTitle,
			&n.NoteDatetime, &n.NoteText, &n.NoteHash, &n.SourceNoteID, &n.DataSourceID)
		if err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

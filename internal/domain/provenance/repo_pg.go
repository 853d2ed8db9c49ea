package provenance

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

func (r *repoPG) UpsertDataSource(ctx context.Context, ds *DataSource) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO data_source (
			original_filename, ingested_at, file_sha256, source_archive,
			document_created, repository_unique_id, document_hash,
			document_size, author_institution, attachment_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (file_sha256) DO UPDATE SET
			original_filename = excluded.original_filename,
			source_archive = COALESCE(excluded.source_archive, data_source.source_archive),
			document_created = COALESCE(excluded.document_created, data_source.document_created),
			repository_unique_id = COALESCE(excluded.repository_unique_id, data_source.repository_unique_id),
			document_hash = COALESCE(excluded.document_hash, data_source.document_hash),
			document_size = COALESCE(excluded.document_size, data_source.document_size),
			author_institution = COALESCE(excluded.author_institution, data_source.author_institution),
			attachment_id = COALESCE(data_source.attachment_id, excluded.attachment_id)
		RETURNING id`,
		ds.OriginalFilename, ds.IngestedAt, ds.FileSHA256, nullif(ds.SourceArchive),
		nullif(ds.DocumentCreated), nullif(ds.RepositoryUniqueID), nullif(ds.DocumentHash),
		ds.DocumentSize, nullif(ds.AuthorInstitution), ds.AttachmentID,
	).Scan(&id)
	return id, err
}

const dataSourceColumns = `id, original_filename, ingested_at, file_sha256,
	COALESCE(source_archive, ''), COALESCE(document_created, ''),
	COALESCE(repository_unique_id, ''), COALESCE(document_hash, ''),
	document_size, COALESCE(author_institution, ''), attachment_id`

func (r *repoPG) GetDataSourceByHash(ctx context.Context, fileSHA256 string) (*DataSource, error) {
	var ds DataSource
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+dataSourceColumns+` FROM data_source WHERE file_sha256 = $1`, fileSHA256,
	).Scan(&ds.ID, &ds.OriginalFilename, &ds.IngestedAt, &ds.FileSHA256,
		&ds.SourceArchive, &ds.DocumentCreated,
		&ds.RepositoryUniqueID, &ds.DocumentHash,
		&ds.DocumentSize, &ds.AuthorInstitution, &ds.AttachmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *repoPG) GetAttachmentByPath(ctx context.Context, patientID int64, filePath string) (*Attachment, error) {
	var a Attachment
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, file_path, COALESCE(mime_type, ''), COALESCE(description, ''), data_source_id
		FROM attachment
		WHERE patient_id = $1 AND file_path = $2`, patientID, filePath,
	).Scan(&a.ID, &a.PatientID, &a.FilePath, &a.MimeType, &a.Description, &a.DataSourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) CreateAttachment(ctx context.Context, a *Attachment) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO attachment (patient_id, file_path, mime_type, description, data_source_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		a.PatientID, a.FilePath, nullif(a.MimeType), nullif(a.Description), a.DataSourceID,
	).Scan(&a.ID)
}

// UpdateAttachment sets only the columns with non-zero values. No-op when
// all are zero.
func (r *repoPG) UpdateAttachment(ctx context.Context, id int64, mimeType, description string, dataSourceID *int64) error {
	sets := ""
	var args []interface{}
	add := func(column string, value interface{}) {
		if sets != "" {
			sets += ", "
		}
		args = append(args, value)
		sets += fmt.Sprintf("%s = $%d", column, len(args))
	}
	if mimeType != "" {
		add("mime_type", mimeType)
	}
	if description != "" {
		add("description", description)
	}
	if dataSourceID != nil {
		add("data_source_id", *dataSourceID)
	}
	if sets == "" {
		return nil
	}
	args = append(args, id)
	_, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf("UPDATE attachment SET %s WHERE id = $%d", sets, len(args)), args...)
	return err
}

func (r *repoPG) LinkAttachment(ctx context.Context, dataSourceID, attachmentID int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE data_source SET attachment_id = $1 WHERE id = $2`, attachmentID, dataSourceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("link attachment %d to data_source %d: no such row", attachmentID, dataSourceID)
	}
	return nil
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

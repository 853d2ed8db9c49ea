package provenance

import "context"

// Repository provides access to data_source and attachment rows.
type Repository interface {
	// UpsertDataSource inserts or merges a provenance row by file hash and
	// returns its id. Absent metadata never overwrites stored values; a
	// stored attachment link is kept.
	UpsertDataSource(ctx context.Context, ds *DataSource) (int64, error)
	GetDataSourceByHash(ctx context.Context, fileSHA256 string) (*DataSource, error)
	// GetAttachmentByPath matches on (patient_id, file_path). Returns nil
	// when no row matches.
	GetAttachmentByPath(ctx context.Context, patientID int64, filePath string) (*Attachment, error)
	CreateAttachment(ctx context.Context, a *Attachment) error
	// UpdateAttachment sets only the non-zero fields on an existing row.
	UpdateAttachment(ctx context.Context, id int64, mimeType, description string, dataSourceID *int64) error
	// LinkAttachment points a data_source row at its attachment.
	LinkAttachment(ctx context.Context, dataSourceID, attachmentID int64) error
}

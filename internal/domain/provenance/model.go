package provenance

// DataSource is the provenance row for one ingested document, keyed by the
// SHA-256 of its bytes.
type DataSource struct {
	ID                 int64  `json:"id"`
	OriginalFilename   string `json:"original_filename"`
	IngestedAt         string `json:"ingested_at"`
	FileSHA256         string `json:"file_sha256"`
	SourceArchive      string `json:"source_archive"`
	DocumentCreated    string `json:"document_created"`
	RepositoryUniqueID string `json:"repository_unique_id"`
	DocumentHash       string `json:"document_hash"`
	DocumentSize       *int64 `json:"document_size,omitempty"`
	AuthorInstitution  string `json:"author_institution"`
	AttachmentID       *int64 `json:"attachment_id,omitempty"`
}

// Attachment points at the raw document on disk, keyed per patient by path.
type Attachment struct {
	ID           int64  `json:"id"`
	PatientID    *int64 `json:"patient_id,omitempty"`
	FilePath     string `json:"file_path"`
	MimeType     string `json:"mime_type"`
	Description  string `json:"description"`
	DataSourceID *int64 `json:"data_source_id,omitempty"`
}

// Metadata carries submission-set details from an XDM archive manifest.
// All fields are optional; absent values never overwrite stored ones.
type Metadata struct {
	DocumentCreated    string
	RepositoryUniqueID string
	DocumentHash       string
	DocumentSize       *int64
	AuthorInstitution  string
}

package provenance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Service records ingestion provenance: one data_source row per distinct
// document hash and one attachment row per (patient, path).
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RecordSource ensures a provenance row exists for the document bytes and
// returns its id. Re-ingesting the same bytes merges metadata instead of
// duplicating the row.
func (s *Service) RecordSource(ctx context.Context, filePath string, content []byte, sourceArchive string, meta Metadata) (int64, error) {
	sum := sha256.Sum256(content)

	id, err := s.repo.UpsertDataSource(ctx, &DataSource{
		OriginalFilename:   filepath.Base(filePath),
		IngestedAt:         s.now().UTC().Truncate(time.Second).Format(time.RFC3339),
		FileSHA256:         hex.EncodeToString(sum[:]),
		SourceArchive:      sourceArchive,
		DocumentCreated:    meta.DocumentCreated,
		RepositoryUniqueID: meta.RepositoryUniqueID,
		DocumentHash:       meta.DocumentHash,
		DocumentSize:       meta.DocumentSize,
		AuthorInstitution:  meta.AuthorInstitution,
	})
	if err != nil {
		return 0, fmt.Errorf("record data source for %s: %w", filePath, err)
	}
	return id, nil
}

// AttachDocument upserts the attachment row for a document and links it to
// the provenance row.
func (s *Service) AttachDocument(ctx context.Context, patientID, dataSourceID int64, filePath, mimeType, description string) (int64, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return 0, fmt.Errorf("attach document: empty file path")
	}

	existing, err := s.repo.GetAttachmentByPath(ctx, patientID, path)
	if err != nil {
		return 0, err
	}

	var attachmentID int64
	if existing != nil {
		attachmentID = existing.ID
		newMime := ""
		if mimeType != "" && existing.MimeType != mimeType {
			newMime = mimeType
		}
		newDesc := ""
		if desc := strings.TrimSpace(description); desc != "" && existing.Description != desc {
			newDesc = desc
		}
		var newDS *int64
		if dataSourceID != 0 && (existing.DataSourceID == nil || *existing.DataSourceID != dataSourceID) {
			newDS = &dataSourceID
		}
		if newMime != "" || newDesc != "" || newDS != nil {
			if err := s.repo.UpdateAttachment(ctx, existing.ID, newMime, newDesc, newDS); err != nil {
				return 0, err
			}
		}
	} else {
		a := &Attachment{
			PatientID:    &patientID,
			FilePath:     path,
			MimeType:     mimeType,
			Description:  strings.TrimSpace(description),
			DataSourceID: &dataSourceID,
		}
		if err := s.repo.CreateAttachment(ctx, a); err != nil {
			return 0, err
		}
		attachmentID = a.ID
	}

	if err := s.repo.LinkAttachment(ctx, dataSourceID, attachmentID); err != nil {
		return 0, err
	}
	return attachmentID, nil
}

// SourceByHash returns the provenance row for a document hash, or nil.
func (s *Service) SourceByHash(ctx context.Context, fileSHA256 string) (*DataSource, error) {
	return s.repo.GetDataSourceByHash(ctx, fileSHA256)
}

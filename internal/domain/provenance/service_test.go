package provenance

import (
	"context"
	"testing"
	"time"
)

type mockRepo struct {
	sources     map[string]*DataSource
	attachments []*Attachment
	nextID      int64
	links       map[int64]int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{sources: make(map[string]*DataSource), links: make(map[int64]int64), nextID: 1}
}

func (m *mockRepo) UpsertDataSource(_ context.Context, ds *DataSource) (int64, error) {
	if existing, ok := m.sources[ds.FileSHA256]; ok {
		existing.OriginalFilename = ds.OriginalFilename
		if existing.SourceArchive == "" {
			existing.SourceArchive = ds.SourceArchive
		}
		if existing.DocumentCreated == "" {
			existing.DocumentCreated = ds.DocumentCreated
		}
		if existing.AuthorInstitution == "" {
			existing.AuthorInstitution = ds.AuthorInstitution
		}
		return existing.ID, nil
	}
	ds.ID = m.nextID
	m.nextID++
	m.sources[ds.FileSHA256] = ds
	return ds.ID, nil
}

func (m *mockRepo) GetDataSourceByHash(_ context.Context, fileSHA256 string) (*DataSource, error) {
	return m.sources[fileSHA256], nil
}

func (m *mockRepo) GetAttachmentByPath(_ context.Context, patientID int64, filePath string) (*Attachment, error) {
	for _, a := range m.attachments {
		if a.PatientID != nil && *a.PatientID == patientID && a.FilePath == filePath {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) CreateAttachment(_ context.Context, a *Attachment) error {
	a.ID = m.nextID
	m.nextID++
	m.attachments = append(m.attachments, a)
	return nil
}

func (m *mockRepo) UpdateAttachment(_ context.Context, id int64, mimeType, description string, dataSourceID *int64) error {
	for _, a := range m.attachments {
		if a.ID != id {
			continue
		}
		if mimeType != "" {
			a.MimeType = mimeType
		}
		if description != "" {
			a.Description = description
		}
		if dataSourceID != nil {
			a.DataSourceID = dataSourceID
		}
	}
	return nil
}

func (m *mockRepo) LinkAttachment(_ context.Context, dataSourceID, attachmentID int64) error {
	m.links[dataSourceID] = attachmentID
	return nil
}

func newService(repo *mockRepo) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestRecordSourceIsIdempotentByHash(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo)
	ctx := context.Background()

	content := []byte("<ClinicalDocument/>")
	first, err := svc.RecordSource(ctx, "/in/ccd.xml", content, "", Metadata{})
	if err != nil {
		t.Fatalf("RecordSource: %v", err)
	}
	second, err := svc.RecordSource(ctx, "/other/ccd.xml", content, "batch.zip", Metadata{AuthorInstitution: "Acme Clinic"})
	if err != nil {
		t.Fatalf("RecordSource: %v", err)
	}
	if first != second {
		t.Fatalf("same bytes resolved to rows %d and %d", first, second)
	}
	if len(repo.sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(repo.sources))
	}
	for _, ds := range repo.sources {
		if ds.SourceArchive != "batch.zip" || ds.AuthorInstitution != "Acme Clinic" {
			t.Errorf("metadata not merged: %+v", ds)
		}
	}
}

func TestRecordSourceFields(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo)

	size := int64(2048)
	if _, err := svc.RecordSource(context.Background(), "/in/dir/doc.xml", []byte("x"), "", Metadata{
		DocumentCreated: "20240101",
		DocumentSize:    &size,
	}); err != nil {
		t.Fatalf("RecordSource: %v", err)
	}
	for _, ds := range repo.sources {
		if ds.OriginalFilename != "doc.xml" {
			t.Errorf("filename = %q, want base name", ds.OriginalFilename)
		}
		if ds.IngestedAt != "2024-06-01T12:00:00Z" {
			t.Errorf("ingested_at = %q", ds.IngestedAt)
		}
		if len(ds.FileSHA256) != 64 {
			t.Errorf("hash = %q, want 64 hex chars", ds.FileSHA256)
		}
	}
}

func TestAttachDocumentUpsertsAndLinks(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo)
	ctx := context.Background()

	id, err := svc.AttachDocument(ctx, 1, 10, "/store/doc.xml", "application/xml", "CCD document")
	if err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}
	again, err := svc.AttachDocument(ctx, 1, 11, "/store/doc.xml", "application/xml", "")
	if err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}
	if id != again || len(repo.attachments) != 1 {
		t.Fatalf("attachment duplicated: first=%d second=%d rows=%d", id, again, len(repo.attachments))
	}
	if repo.links[11] != id {
		t.Errorf("data source 11 not linked to attachment %d", id)
	}
	if repo.attachments[0].DataSourceID == nil || *repo.attachments[0].DataSourceID != 11 {
		t.Errorf("attachment data source not refreshed: %v", repo.attachments[0].DataSourceID)
	}
}

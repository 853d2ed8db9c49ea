package progressnote

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service stores parsed progress notes.
type Service struct {
	repo       Repository
	providers  *provider.Service
	encounters *encounter.Service
}

func NewService(repo Repository, providers *provider.Service, encounters *encounter.Service) *Service {
	return &Service{repo: repo, providers: providers, encounters: encounters}
}

// Insert stores parsed progress notes, deduplicating on the SHA-1 of the
// note text together with the title and timestamp. Notes with no text are
// dropped.
func (s *Service) Insert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.ProgressNoteRecord) (inserted, duplicates int, err error) {
	for _, rec := range records {
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			continue
		}

		var providerID *int64
		if rec.Provider != "" {
			id, err := s.providers.GetOrCreate(ctx, rec.Provider, provider.Details{})
			if err != nil {
				return inserted, duplicates, err
			}
			if id != 0 {
				providerID = &id
			}
		}

		hint := rec.EncounterDate
		if hint == "" {
			hint = rec.NoteDatetime
		}
		encounterID, err := s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
			EncounterDate: hint,
			ProviderName:  rec.Provider,
			ProviderID:    providerID,
		})
		if err != nil {
			return inserted, duplicates, err
		}

		n := &Note{
			PatientID:    patientID,
			EncounterID:  encounterID,
			ProviderID:   providerID,
			NoteTitle:    strings.TrimSpace(rec.Title),
			NoteDatetime: rec.NoteDatetime,
			NoteText:     text,
			NoteHash:     hashText(text),
			SourceNoteID: strings.TrimSpace(rec.SourceID),
			DataSourceID: dataSourceID,
		}
		switch err := s.repo.Create(ctx, n); {
		case errors.Is(err, ErrDuplicate):
			duplicates++
			if err := s.repo.BackfillSource(ctx, n); err != nil {
				return inserted, duplicates, err
			}
		case err != nil:
			return inserted, duplicates, err
		default:
			inserted++
		}
	}
	return inserted, duplicates, nil
}

// ListByPatient returns a patient's notes, most recent first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Note, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func hashText(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

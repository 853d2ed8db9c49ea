package patient

import (
	"context"
	"fmt"

	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service reconciles parsed demographics with stored patient rows.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Upsert returns the id of the patient row matching the parsed demographics,
// creating one when no row shares the identity triple. An existing row picks
// up the gender and source file from the new document when they are set.
func (s *Service) Upsert(ctx context.Context, rec ccd.PatientRecord, sourceFile string, dataSourceID *int64) (int64, error) {
	if !rec.HasName() {
		return 0, fmt.Errorf("patient record has no name")
	}

	existing, err := s.repo.GetByIdentity(ctx, rec.Given, rec.Family, rec.BirthDate)
	if err != nil {
		return 0, fmt.Errorf("lookup patient: %w", err)
	}

	if existing != nil {
		gender := ""
		if rec.Gender != "" && existing.Gender != rec.Gender {
			gender = rec.Gender
		}
		newSource := ""
		if sourceFile != "" && existing.SourceFile != sourceFile {
			newSource = sourceFile
		}
		if gender != "" || newSource != "" || dataSourceID != nil {
			if err := s.repo.UpdateDetails(ctx, existing.ID, gender, newSource, dataSourceID); err != nil {
				return 0, fmt.Errorf("update patient %d: %w", existing.ID, err)
			}
		}
		return existing.ID, nil
	}

	p := &Patient{
		GivenName:    rec.Given,
		FamilyName:   rec.Family,
		BirthDate:    rec.BirthDate,
		Gender:       rec.Gender,
		SourceFile:   sourceFile,
		DataSourceID: dataSourceID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return 0, fmt.Errorf("create patient: %w", err)
	}
	return p.ID, nil
}

// Get returns a patient by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of patients and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

package medication

import (
	"context"
	"errors"
	"fmt"

	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service stores parsed medication administrations.
type Service struct {
	repo       Repository
	encounters *encounter.Service
}

func NewService(repo Repository, encounters *encounter.Service) *Service {
	return &Service{repo: repo, encounters: encounters}
}

// Insert stores parsed medications, aligning each with an encounter by its
// timing. The patient's stored natural keys are loaded once up front and the
// batch is filtered in memory; the unique index backstops concurrent writers.
func (s *Service) Insert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.MedicationRecord) (inserted, duplicates int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	seen, err := s.repo.ExistingKeys(ctx, patientID)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		if rec.Name == "" {
			continue
		}

		notes := rec.Notes
		if rec.RxNorm != "" {
			if notes != "" {
				notes = fmt.Sprintf("%s (RxNorm: %s)", notes, rec.RxNorm)
			} else {
				notes = "RxNorm: " + rec.RxNorm
			}
		}

		encounterDate := rec.Start
		if encounterDate == "" {
			encounterDate = rec.End
		}
		if encounterDate == "" {
			encounterDate = rec.AuthorTime
		}
		encounterID, err := s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
			EncounterDate: encounterDate,
			ProviderName:  rec.Provider,
		})
		if err != nil {
			return inserted, duplicates, err
		}

		m := &Medication{
			PatientID:    patientID,
			EncounterID:  encounterID,
			Name:         rec.Name,
			Dose:         rec.Dose,
			Route:        rec.Route,
			Frequency:    rec.Frequency,
			StartDate:    rec.Start,
			EndDate:      rec.End,
			Status:       rec.Status,
			Notes:        notes,
			DataSourceID: dataSourceID,
		}
		k := m.naturalKey()
		if seen[k] {
			duplicates++
			if err := s.repo.BackfillSource(ctx, m); err != nil {
				return inserted, duplicates, err
			}
			continue
		}
		seen[k] = true

		switch err := s.repo.Create(ctx, m); {
		case errors.Is(err, ErrDuplicate):
			duplicates++
			if err := s.repo.BackfillSource(ctx, m); err != nil {
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

// ListByPatient returns a patient's medications, most recent start first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Medication, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

package vital

import (
	"context"
	"errors"
	"strings"

	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service stores parsed vital signs.
type Service struct {
	repo       Repository
	encounters *encounter.Service
}

func NewService(repo Repository, encounters *encounter.Service) *Service {
	return &Service{repo: repo, encounters: encounters}
}

// Insert stores parsed vital signs. Measurements without a value are
// dropped; the measurement date falls back to the surrounding encounter
// span. Rows rejected by the natural-key index count as duplicates.
func (s *Service) Insert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.VitalRecord) (inserted, duplicates int, err error) {
	for _, rec := range records {
		value := clean(rec.Value)
		if value == "" {
			continue
		}

		date := firstClean(rec.Date, rec.EncounterStart, rec.EncounterEnd)
		providerName := clean(rec.Provider)
		sourceID := clean(rec.EncounterSourceID)

		encounterID, err := s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
			EncounterDate:     date,
			ProviderName:      providerName,
			SourceEncounterID: sourceID,
		})
		if err != nil {
			return inserted, duplicates, err
		}
		if encounterID == nil {
			if fallback := clean(rec.EncounterEnd); fallback != "" && fallback != date {
				encounterID, err = s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
					EncounterDate:     fallback,
					ProviderName:      providerName,
					SourceEncounterID: sourceID,
				})
				if err != nil {
					return inserted, duplicates, err
				}
			}
		}

		vitalType := clean(rec.VitalType)
		if vitalType == "" {
			vitalType = clean(rec.Code)
		}

		v := &Vital{
			PatientID:    patientID,
			EncounterID:  encounterID,
			VitalType:    vitalType,
			Value:        value,
			Unit:         clean(rec.Unit),
			Date:         date,
			DataSourceID: dataSourceID,
		}
		switch err := s.repo.Create(ctx, v); {
		case errors.Is(err, ErrDuplicate):
			duplicates++
			if err := s.repo.BackfillSource(ctx, v); err != nil {
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

// ListByPatient returns a patient's vitals, most recent first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Vital, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Series returns a patient's measurements of one type in date order.
func (s *Service) Series(ctx context.Context, patientID int64, vitalType string) ([]*Vital, error) {
	return s.repo.Series(ctx, patientID, vitalType)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstClean(values ...string) string {
	for _, v := range values {
		if cleaned := clean(v); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

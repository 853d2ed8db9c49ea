package labresult

import (
	"context"
	"errors"

	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service stores parsed lab results.
type Service struct {
	repo       Repository
	providers  *provider.Service
	encounters *encounter.Service
}

func NewService(repo Repository, providers *provider.Service, encounters *encounter.Service) *Service {
	return &Service{repo: repo, providers: providers, encounters: encounters}
}

// Insert stores parsed lab results. The encounter is resolved first through
// the ordering provider, then through the performing organization. The
// patient's stored natural keys are loaded once up front and the batch is
// filtered in memory; the unique index backstops concurrent writers.
func (s *Service) Insert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.LabRecord) (inserted, duplicates int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	seen, err := s.repo.ExistingKeys(ctx, patientID)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		if rec.LOINC == "" {
			continue
		}

		var orderingID, performingID *int64
		if rec.OrderingProvider != "" {
			id, err := s.providers.GetOrCreate(ctx, rec.OrderingProvider, provider.Details{})
			if err != nil {
				return inserted, duplicates, err
			}
			if id != 0 {
				orderingID = &id
			}
		}
		if rec.PerformingOrg != "" {
			id, err := s.providers.GetOrCreate(ctx, rec.PerformingOrg, provider.Details{
				EntityType: provider.EntityOrganization,
			})
			if err != nil {
				return inserted, duplicates, err
			}
			if id != 0 {
				performingID = &id
			}
		}

		encounterID, err := s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
			EncounterDate:     firstNonEmpty(rec.EncounterStart, rec.Date),
			ProviderName:      rec.OrderingProvider,
			ProviderID:        orderingID,
			SourceEncounterID: rec.EncounterSourceID,
		})
		if err != nil {
			return inserted, duplicates, err
		}
		if encounterID == nil {
			encounterID, err = s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
				EncounterDate:     firstNonEmpty(rec.EncounterEnd, rec.Date),
				ProviderName:      rec.PerformingOrg,
				ProviderID:        performingID,
				SourceEncounterID: rec.EncounterSourceID,
			})
			if err != nil {
				return inserted, duplicates, err
			}
		}

		l := &LabResult{
			PatientID:          patientID,
			EncounterID:        encounterID,
			LOINCCode:          rec.LOINC,
			TestName:           rec.TestName,
			ResultValue:        rec.Value,
			Unit:               rec.Unit,
			ReferenceRange:     rec.ReferenceRange,
			AbnormalFlag:       rec.AbnormalFlag,
			Date:               rec.Date,
			OrderingProviderID: orderingID,
			PerformingOrgID:    performingID,
			DataSourceID:       dataSourceID,
		}
		k := l.naturalKey()
		if seen[k] {
			duplicates++
			if err := s.repo.BackfillSource(ctx, l); err != nil {
				return inserted, duplicates, err
			}
			continue
		}
		seen[k] = true

		switch err := s.repo.Create(ctx, l); {
		case errors.Is(err, ErrDuplicate):
			duplicates++
			if err := s.repo.BackfillSource(ctx, l); err != nil {
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

// ListByPatient returns a patient's lab results, most recent first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*LabResult, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Series returns a patient's results for one LOINC code in date order.
func (s *Service) Series(ctx context.Context, patientID int64, loincCode string) ([]*LabResult, error) {
	return s.repo.Series(ctx, patientID, loincCode)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

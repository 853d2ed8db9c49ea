package condition

import (
	"context"
	"strings"

	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service reconciles parsed problem observations with stored conditions.
type Service struct {
	repo       Repository
	providers  *provider.Service
	encounters *encounter.Service
}

func NewService(repo Repository, providers *provider.Service, encounters *encounter.Service) *Service {
	return &Service{repo: repo, providers: providers, encounters: encounters}
}

// Upsert stores parsed conditions for a patient. Existing rows sharing the
// (name, code, onset) key pick up status, notes, provider and encounter when
// the new document supplies them; every code is recorded in condition_code.
func (s *Service) Upsert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.ConditionRecord) (inserted, updated int, err error) {
	for _, rec := range records {
		var providerID *int64
		if rec.Provider != "" {
			id, err := s.providers.GetOrCreate(ctx, rec.Provider, provider.Details{})
			if err != nil {
				return inserted, updated, err
			}
			if id != 0 {
				providerID = &id
			}
		}

		encounterID, err := s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
			EncounterDate:     firstNonEmpty(rec.EncounterStart, rec.Start, rec.AuthorTime),
			ProviderName:      rec.Provider,
			ProviderID:        providerID,
			SourceEncounterID: rec.EncounterSourceID,
		})
		if err != nil {
			return inserted, updated, err
		}
		if encounterID == nil && rec.EncounterEnd != "" {
			encounterID, err = s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
				EncounterDate:     rec.EncounterEnd,
				ProviderName:      rec.Provider,
				ProviderID:        providerID,
				SourceEncounterID: rec.EncounterSourceID,
			})
			if err != nil {
				return inserted, updated, err
			}
		}

		var primary ccd.CodeRef
		if len(rec.Codes) > 0 {
			primary = rec.Codes[0]
		}
		name := strings.TrimSpace(firstNonEmpty(rec.Name, primary.Display, primary.Code))
		if name == "" {
			continue
		}

		existing, err := s.repo.GetByNaturalKey(ctx, patientID, name, strings.TrimSpace(primary.Code), rec.Start)
		if err != nil {
			return inserted, updated, err
		}

		var conditionID int64
		if existing != nil {
			conditionID = existing.ID
			status := ""
			if rec.Status != "" && existing.Status != rec.Status {
				status = rec.Status
			}
			notes := ""
			if rec.Notes != "" && existing.Notes != rec.Notes {
				notes = rec.Notes
			}
			newProvider := providerID
			if newProvider != nil && existing.ProviderID != nil && *existing.ProviderID == *newProvider {
				newProvider = nil
			}
			newEncounter := encounterID
			if newEncounter != nil && existing.EncounterID != nil && *existing.EncounterID == *newEncounter {
				newEncounter = nil
			}
			if status != "" || notes != "" || newProvider != nil || newEncounter != nil {
				if err := s.repo.UpdateDetails(ctx, existing.ID, status, notes, newProvider, newEncounter); err != nil {
					return inserted, updated, err
				}
				updated++
			}
		} else {
			c := &Condition{
				PatientID:    patientID,
				EncounterID:  encounterID,
				ProviderID:   providerID,
				Name:         name,
				OnsetDate:    rec.Start,
				Status:       rec.Status,
				Notes:        rec.Notes,
				Code:         strings.TrimSpace(primary.Code),
				CodeSystem:   strings.TrimSpace(primary.System),
				CodeDisplay:  strings.TrimSpace(primary.Display),
				DataSourceID: dataSourceID,
			}
			if err := s.repo.Create(ctx, c); err != nil {
				return inserted, updated, err
			}
			conditionID = c.ID
			inserted++
		}

		for _, code := range rec.Codes {
			value := strings.TrimSpace(code.Code)
			if value == "" {
				continue
			}
			err := s.repo.AddCode(ctx, &Code{
				ConditionID: conditionID,
				Code:        value,
				CodeSystem:  strings.TrimSpace(code.System),
				DisplayName: strings.TrimSpace(code.Display),
			})
			if err != nil {
				return inserted, updated, err
			}
		}
	}
	return inserted, updated, nil
}

// ListByPatient returns a patient's conditions, most recent onset first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Condition, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Codes returns the recorded codes for a condition.
func (s *Service) Codes(ctx context.Context, conditionID int64) ([]*Code, error) {
	return s.repo.ListCodes(ctx, conditionID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

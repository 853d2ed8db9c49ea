package allergy

import (
	"context"
	"strings"

	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service reconciles parsed allergy observations with stored rows.
type Service struct {
	repo       Repository
	providers  *provider.Service
	encounters *encounter.Service
}

func NewService(repo Repository, providers *provider.Service, encounters *encounter.Service) *Service {
	return &Service{repo: repo, providers: providers, encounters: encounters}
}

// Upsert stores parsed allergies. Rows sharing the natural key pick up the
// fields the new document supplies; observations naming no substance at all
// are dropped.
func (s *Service) Upsert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.AllergyRecord) (inserted, updated int, err error) {
	for _, rec := range records {
		substance := clean(firstNonEmpty(rec.Substance, rec.SubstanceCodeDisplay, rec.SubstanceCode))
		substanceCode := clean(rec.SubstanceCode)
		if substance == "" && substanceCode == "" {
			continue
		}

		var providerID *int64
		providerName := clean(rec.Provider)
		if providerName != "" {
			id, err := s.providers.GetOrCreate(ctx, providerName, provider.Details{})
			if err != nil {
				return inserted, updated, err
			}
			if id != 0 {
				providerID = &id
			}
		}

		onset := clean(rec.Onset)
		status := clean(rec.Status)
		sourceID := clean(rec.EncounterSourceID)

		encounterID, err := s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
			EncounterDate:     firstNonEmpty(clean(rec.EncounterStart), onset),
			ProviderName:      providerName,
			ProviderID:        providerID,
			SourceEncounterID: sourceID,
		})
		if err != nil {
			return inserted, updated, err
		}
		if encounterID == nil && clean(rec.EncounterEnd) != "" {
			encounterID, err = s.encounters.Resolve(ctx, patientID, encounter.ResolveQuery{
				EncounterDate:     clean(rec.EncounterEnd),
				ProviderName:      providerName,
				ProviderID:        providerID,
				SourceEncounterID: sourceID,
			})
			if err != nil {
				return inserted, updated, err
			}
		}

		existing, err := s.repo.GetByNaturalKey(ctx, patientID, substanceCode, substance, onset, status)
		if err != nil {
			return inserted, updated, err
		}

		if existing != nil {
			u := Updates{}
			set := func(target *string, newValue, oldValue string) {
				if newValue != "" && oldValue != newValue {
					*target = newValue
				}
			}
			set(&u.Severity, clean(rec.Severity), existing.Severity)
			set(&u.Reaction, clean(rec.Reaction), existing.Reaction)
			set(&u.Notes, clean(rec.Notes), existing.Notes)
			set(&u.Criticality, clean(rec.Criticality), existing.Criticality)
			set(&u.Status, status, existing.Status)
			set(&u.NotedDate, clean(rec.NotedDate), existing.NotedDate)
			set(&u.SourceAllergyID, clean(rec.SourceAllergyID), existing.SourceAllergyID)
			set(&u.ReactionCode, clean(rec.ReactionCode), existing.ReactionCode)
			set(&u.ReactionCodeSystem, clean(rec.ReactionCodeSystem), existing.ReactionCodeSystem)
			if providerID != nil && (existing.ProviderID == nil || *existing.ProviderID != *providerID) {
				u.ProviderID = providerID
			}
			if encounterID != nil && (existing.EncounterID == nil || *existing.EncounterID != *encounterID) {
				u.EncounterID = encounterID
			}
			if dataSourceID != nil && (existing.DataSourceID == nil || *existing.DataSourceID != *dataSourceID) {
				u.DataSourceID = dataSourceID
			}
			if !u.IsZero() {
				if err := s.repo.Update(ctx, existing.ID, u); err != nil {
					return inserted, updated, err
				}
				updated++
			}
			continue
		}

		a := &Allergy{
			PatientID:            patientID,
			EncounterID:          encounterID,
			ProviderID:           providerID,
			Substance:            substance,
			SubstanceCode:        substanceCode,
			SubstanceCodeSystem:  clean(rec.SubstanceCodeSystem),
			SubstanceCodeDisplay: clean(rec.SubstanceCodeDisplay),
			Reaction:             clean(rec.Reaction),
			ReactionCode:         clean(rec.ReactionCode),
			ReactionCodeSystem:   clean(rec.ReactionCodeSystem),
			Severity:             clean(rec.Severity),
			Criticality:          clean(rec.Criticality),
			Status:               status,
			OnsetDate:            onset,
			NotedDate:            clean(rec.NotedDate),
			SourceAllergyID:      clean(rec.SourceAllergyID),
			Notes:                clean(rec.Notes),
			DataSourceID:         dataSourceID,
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return inserted, updated, err
		}
		inserted++
	}
	return inserted, updated, nil
}

// ListByPatient returns a patient's allergies ordered by substance.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Allergy, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package encounter

import (
	"context"
	"strings"

	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service reconciles parsed encounters against stored rows and resolves
// facts to encounters.
type Service struct {
	repo      Repository
	providers *provider.Service
}

func NewService(repo Repository, providers *provider.Service) *Service {
	return &Service{repo: repo, providers: providers}
}

// ResolveQuery carries the hints a clinical fact has about its encounter.
type ResolveQuery struct {
	EncounterDate     string
	ProviderName      string
	ProviderID        *int64
	SourceEncounterID string
}

// Resolve finds the best-matching encounter for a fact, or nil when none
// matches. A provider name is normalized to a provider row first so the
// provider-qualified cascade tiers can use it.
func (s *Service) Resolve(ctx context.Context, patientID int64, q ResolveQuery) (*int64, error) {
	providerID := q.ProviderID
	if providerID == nil && q.ProviderName != "" {
		id, err := s.providers.GetOrCreate(ctx, q.ProviderName, provider.Details{})
		if err != nil {
			return nil, err
		}
		if id != 0 {
			providerID = &id
		}
	}

	id, err := s.repo.FindID(ctx, patientID, q.EncounterDate, providerID, q.SourceEncounterID)
	if err != nil || id == 0 {
		return nil, err
	}
	return &id, nil
}

// Upsert stores parsed encounters, merging details into existing rows that
// share the natural key. Records with neither a date nor a source id are
// unanchorable and skipped.
func (s *Service) Upsert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.EncounterRecord) (inserted, updated int, err error) {
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

		encounterDate := rec.EncounterDate()
		notes := rec.Notes
		if notes == "" {
			notes = joinParts(rec.Location, rec.Status, rec.Mood, rec.Code)
		}
		if encounterDate == "" && rec.SourceID == "" {
			continue
		}

		existing, err := s.repo.GetByNaturalKey(ctx, patientID, encounterDate, providerID, rec.SourceID)
		if err != nil {
			return inserted, updated, err
		}

		if existing != nil {
			encounterType := ""
			if rec.Type != "" && existing.EncounterType != rec.Type {
				encounterType = rec.Type
			}
			newNotes := ""
			if notes != "" && existing.Notes != notes {
				newNotes = notes
			}
			reason := ""
			if rec.ReasonForVisit != "" && existing.ReasonForVisit != rec.ReasonForVisit {
				reason = rec.ReasonForVisit
			}
			if encounterType != "" || newNotes != "" || reason != "" {
				if err := s.repo.UpdateDetails(ctx, existing.ID, encounterType, newNotes, reason); err != nil {
					return inserted, updated, err
				}
				updated++
			}
			continue
		}

		if err := s.repo.Create(ctx, &Encounter{
			PatientID:         patientID,
			EncounterDate:     encounterDate,
			ProviderID:        providerID,
			SourceEncounterID: rec.SourceID,
			EncounterType:     rec.Type,
			Notes:             notes,
			ReasonForVisit:    rec.ReasonForVisit,
			DataSourceID:      dataSourceID,
		}); err != nil {
			return inserted, updated, err
		}
		inserted++
	}
	return inserted, updated, nil
}

// Get returns an encounter by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPatient returns a patient's encounters, most recent first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Encounter, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func joinParts(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}

package encounter

import "context"

// Repository defines the persistence interface for encounters.
type Repository interface {
	// FindID resolves an encounter through the matching cascade: source id
	// with exact date, source id within the same day, exact date, same day,
	// then most recent for the provider. Each tier tries a
	// provider-qualified variant before relaxing the provider constraint.
	// Returns 0 when nothing matches.
	FindID(ctx context.Context, patientID int64, encounterDate string, providerID *int64, sourceEncounterID string) (int64, error)

	// GetByNaturalKey matches the exact upsert key, treating NULL and empty
	// as equal. Returns nil when absent.
	GetByNaturalKey(ctx context.Context, patientID int64, encounterDate string, providerID *int64, sourceEncounterID string) (*Encounter, error)

	Create(ctx context.Context, e *Encounter) error
	UpdateDetails(ctx context.Context, id int64, encounterType, notes, reasonForVisit string) error

	GetByID(ctx context.Context, id int64) (*Encounter, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Encounter, error)
}

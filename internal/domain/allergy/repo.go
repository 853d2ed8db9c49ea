package allergy

import "context"

// Updates carries the fields merged into an existing allergy row. Empty
// strings and nil pointers leave the stored value alone.
type Updates struct {
	Severity           string
	Reaction           string
	Notes              string
	Criticality        string
	Status             string
	NotedDate          string
	SourceAllergyID    string
	ReactionCode       string
	ReactionCodeSystem string
	ProviderID         *int64
	EncounterID        *int64
	DataSourceID       *int64
}

// IsZero reports whether the update would change nothing.
func (u Updates) IsZero() bool {
	return u.Severity == "" && u.Reaction == "" && u.Notes == "" &&
		u.Criticality == "" && u.Status == "" && u.NotedDate == "" &&
		u.SourceAllergyID == "" && u.ReactionCode == "" && u.ReactionCodeSystem == "" &&
		u.ProviderID == nil && u.EncounterID == nil && u.DataSourceID == nil
}

// Repository provides access to allergy rows.
type Repository interface {
	GetByNaturalKey(ctx context.Context, patientID int64, substanceCode, substance, onsetDate, status string) (*Allergy, error)
	Create(ctx context.Context, a *Allergy) error
	Update(ctx context.Context, id int64, u Updates) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Allergy, error)
}

package immunization

import "context"

// Repository provides access to immunization rows.
type Repository interface {
	// ExistingKeys returns the natural keys already stored for a patient.
	ExistingKeys(ctx context.Context, patientID int64) (map[Key]bool, error)
	Create(ctx context.Context, i *Immunization) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Immunization, error)
}

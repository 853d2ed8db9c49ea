package medication

import "context"

type duplicateError struct{}

func (duplicateError) Error() string { return "medication: duplicate row" }

// ErrDuplicate marks an insert rejected by the natural-key index.
var ErrDuplicate error = duplicateError{}

// Repository provides access to medication rows.
type Repository interface {
	// ExistingKeys returns the natural keys already stored for a patient.
	ExistingKeys(ctx context.Context, patientID int64) (map[Key]bool, error)
	// Create inserts a row, returning ErrDuplicate when the natural key
	// already exists.
	Create(ctx context.Context, m *Medication) error
	// BackfillSource sets data_source_id on the row matching m's natural key
	// when the stored value is still NULL.
	BackfillSource(ctx context.Context, m *Medication) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Medication, error)
}

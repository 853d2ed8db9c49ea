package labresult

import "context"

type duplicateError struct{}

func (duplicateError) Error() string { return "labresult: duplicate row" }

// ErrDuplicate marks an insert rejected by the natural-key index.
var ErrDuplicate error = duplicateError{}

// Repository provides access to lab result rows.
type Repository interface {
	// ExistingKeys returns the natural keys already stored for a patient.
	ExistingKeys(ctx context.Context, patientID int64) (map[Key]bool, error)
	// Create inserts a row, returning ErrDuplicate when the natural key
	// already exists.
	Create(ctx context.Context, l *LabResult) error
	// BackfillSource sets data_source_id on the row matching l's natural key
	// when the stored value is still NULL.
	BackfillSource(ctx context.Context, l *LabResult) error
	ListByPatient(ctx context.Context, patientID int64) ([]*LabResult, error)
	// Series returns a patient's results for one LOINC code in date order.
	Series(ctx context.Context, patientID int64, loincCode string) ([]*LabResult, error)
}

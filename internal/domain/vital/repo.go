package vital

import "context"

type duplicateError struct{}

func (duplicateError) Error() string { return "vital: duplicate row" }

// ErrDuplicate marks an insert rejected by the natural-key index.
var ErrDuplicate error = duplicateError{}

// Repository provides access to vital-sign rows.
type Repository interface {
	// Create inserts a row, returning ErrDuplicate when the natural key
	// already exists.
	Create(ctx context.Context, v *Vital) error
	// BackfillSource sets data_source_id on the row matching v's natural key
	// when the stored value is still NULL.
	BackfillSource(ctx context.Context, v *Vital) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Vital, error)
	// Series returns a patient's measurements of one type in date order.
	Series(ctx context.Context, patientID int64, vitalType string) ([]*Vital, error)
}

package progressnote

import "context"

type duplicateError struct{}

func (duplicateError) Error() string { return "progressnote: duplicate row" }

// ErrDuplicate marks an insert rejected by the natural-key index.
var ErrDuplicate error = duplicateError{}

// Repository provides access to progress note rows.
type Repository interface {
	// Create inserts a row, returning ErrDuplicate when the natural key
	// already exists.
	Create(ctx context.Context, n *Note) error
	// BackfillSource sets data_source_id on the row matching n's natural key
	// when the stored value is still NULL.
	BackfillSource(ctx context.Context, n *Note) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Note, error)
}

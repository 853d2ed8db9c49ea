package condition

import "context"

// Repository provides access to condition rows and their code child rows.
type Repository interface {
	GetByNaturalKey(ctx context.Context, patientID int64, name, code, onsetDate string) (*Condition, error)
	Create(ctx context.Context, c *Condition) error
	// UpdateDetails sets only the non-zero fields on an existing row.
	UpdateDetails(ctx context.Context, id int64, status, notes string, providerID, encounterID *int64) error
	// AddCode inserts a condition_code row, ignoring duplicates.
	AddCode(ctx context.Context, code *Code) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Condition, error)
	ListCodes(ctx context.Context, conditionID int64) ([]*Code, error)
}

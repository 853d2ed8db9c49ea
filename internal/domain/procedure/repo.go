package procedure

import "context"

// Repository provides access to procedure rows and their code child rows.
type Repository interface {
	GetByNaturalKey(ctx context.Context, patientID int64, name, code, date string) (*Procedure, error)
	Create(ctx context.Context, p *Procedure) error
	// UpdateDetails sets only the non-zero fields on an existing row.
	UpdateDetails(ctx context.Context, id int64, status, notes string, providerID, encounterID *int64) error
	// AddCode inserts a procedure_code row, ignoring duplicates.
	AddCode(ctx context.Context, code *Code) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Procedure, error)
	ListCodes(ctx context.Context, procedureID int64) ([]*Code, error)
}

package patient

import "context"

// Repository provides access to patient identity rows.
type Repository interface {
	// GetByIdentity matches on the (given, family, birthDate) triple with
	// empty strings standing in for NULL. Returns nil when no row matches.
	GetByIdentity(ctx context.Context, given, family, birthDate string) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	// UpdateDetails sets only the non-empty fields on an existing row.
	UpdateDetails(ctx context.Context, id int64, gender, sourceFile string, dataSourceID *int64) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

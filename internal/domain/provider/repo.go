package provider

import "context"

// Repository defines the persistence interface for providers.
type Repository interface {
	GetByNormalizedKey(ctx context.Context, key string) (*Provider, error)
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id int64) (*Provider, error)
	List(ctx context.Context, limit, offset int) ([]*Provider, int, error)
}

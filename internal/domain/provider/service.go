package provider

import (
	"context"
	"strings"
	"sync"
)

// Details carries optional metadata for provider creation.
type Details struct {
	NPI          string
	Specialty    string
	Organization string
	Credentials  string
	EntityType   string
}

// Service resolves provider names to stored rows, caching normalized keys so
// a document referencing the same provider dozens of times hits the database
// once.
type Service struct {
	repo Repository

	mu    sync.Mutex
	cache map[string]int64
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, cache: make(map[string]int64)}
}

// GetOrCreate looks up or inserts a provider and returns its ID. Returns 0
// with no error when the name is blank. Names that look like organizations
// are stored as such even when the caller assumed a person.
func (s *Service) GetOrCreate(ctx context.Context, name string, details Details) (int64, error) {
	rawName := strings.TrimSpace(name)
	if rawName == "" {
		return 0, nil
	}

	entityType := details.EntityType
	if entityType == "" {
		entityType = EntityPerson
	}
	if entityType == EntityPerson && IsProbableOrganization(rawName) {
		entityType = EntityOrganization
	}

	p := &Provider{
		Name:       rawName,
		NPI:        strings.TrimSpace(details.NPI),
		Specialty:  strings.TrimSpace(details.Specialty),
		EntityType: entityType,
	}
	if entityType == EntityOrganization {
		p.NormalizedKey = NormalizeOrganizationKey(rawName)
		p.Organization = rawName
	} else {
		given, family, parsedCredentials := ParsePersonName(rawName)
		p.GivenName = given
		p.FamilyName = family
		p.Credentials = details.Credentials
		if p.Credentials == "" {
			p.Credentials = parsedCredentials
		}
		p.NormalizedKey = NormalizePersonKey(given, family, rawName)
		p.Organization = strings.TrimSpace(details.Organization)
	}
	if p.NormalizedKey == "" {
		return 0, nil
	}

	s.mu.Lock()
	id, ok := s.cache[p.NormalizedKey]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	existing, err := s.repo.GetByNormalizedKey(ctx, p.NormalizedKey)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		s.remember(existing.NormalizedKey, existing.ID)
		return existing.ID, nil
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return 0, err
	}
	s.remember(p.NormalizedKey, p.ID)
	return p.ID, nil
}

// Get returns a provider by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Provider, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns providers ordered by name.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) remember(key string, id int64) {
	s.mu.Lock()
	s.cache[key] = id
	s.mu.Unlock()
}

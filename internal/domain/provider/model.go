package provider

import "time"

// Entity types stored in provider.entity_type.
const (
	EntityPerson       = "person"
	EntityOrganization = "organization"
)

// Provider is a normalized clinician or care organization. Rows are
// deduplicated by NormalizedKey so the same provider referenced across
// documents resolves to one record.
type Provider struct {
	ID            int64
	Name          string
	GivenName     string
	FamilyName    string
	Credentials   string
	NPI           string
	Specialty     string
	Organization  string
	NormalizedKey string
	EntityType    string
	CreatedAt     time.Time
}

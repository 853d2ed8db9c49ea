package insurance

import "context"

// Updates carries the fields merged into an existing policy row. Empty
// strings and nil pointers leave the stored value alone.
type Updates struct {
	CoverageType    string
	PolicyType      string
	SubscriberID    string
	SubscriberName  string
	Relationship    string
	EffectiveDate   string
	ExpirationDate  string
	Status          string
	PayerIdentifier string
	SourcePolicyID  string
	Notes           string
	DataSourceID    *int64
}

// IsZero reports whether the update would change nothing.
func (u Updates) IsZero() bool {
	return u.CoverageType == "" && u.PolicyType == "" && u.SubscriberID == "" &&
		u.SubscriberName == "" && u.Relationship == "" && u.EffectiveDate == "" &&
		u.ExpirationDate == "" && u.Status == "" && u.PayerIdentifier == "" &&
		u.SourcePolicyID == "" && u.Notes == "" && u.DataSourceID == nil
}

// Repository provides access to insurance policy rows.
type Repository interface {
	GetByNaturalKey(ctx context.Context, patientID int64, payerName, planName, memberID, groupNumber string) (*Policy, error)
	Create(ctx context.Context, p *Policy) error
	Update(ctx context.Context, id int64, u Updates) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Policy, error)
}

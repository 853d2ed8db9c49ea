package insurance

// Policy is one coverage policy. The natural key is
// (patient_id, payer_name, plan_name, member_id, group_number).
type Policy struct {
	ID              int64  `json:"id"`
	PatientID       int64  `json:"patient_id"`
	PayerName       string `json:"payer_name"`
	PlanName        string `json:"plan_name"`
	CoverageType    string `json:"coverage_type"`
	PolicyType      string `json:"policy_type"`
	MemberID        string `json:"member_id"`
	GroupNumber     string `json:"group_number"`
	SubscriberID    string `json:"subscriber_id"`
	SubscriberName  string `json:"subscriber_name"`
	Relationship    string `json:"relationship"`
	EffectiveDate   string `json:"effective_date"`
	ExpirationDate  string `json:"expiration_date"`
	Status          string `json:"status"`
	PayerIdentifier string `json:"payer_identifier"`
	SourcePolicyID  string `json:"source_policy_id"`
	Notes           string `json:"notes"`
	DataSourceID    *int64 `json:"data_source_id,omitempty"`
}

package patient

// Patient is an identity row. The (given_name, family_name, birth_date)
// triple is the natural key; all three may be empty strings.
type Patient struct {
	ID           int64  `json:"id"`
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	BirthDate    string `json:"birth_date"`
	Gender       string `json:"gender"`
	SourceFile   string `json:"source_file"`
	DataSourceID *int64 `json:"data_source_id,omitempty"`
}

// DisplayName is the patient's name for dashboard listings.
func (p *Patient) DisplayName() string {
	switch {
	case p.GivenName != "" && p.FamilyName != "":
		return p.GivenName + " " + p.FamilyName
	case p.FamilyName != "":
		return p.FamilyName
	default:
		return p.GivenName
	}
}

package encounter

// Encounter is one clinical visit. The natural key is the
// (patient, date, provider, source id) quadruple; all but the patient are
// optional in source data, so fact-to-encounter resolution is best-effort.
type Encounter struct {
	ID                int64
	PatientID         int64
	EncounterDate     string
	ProviderID        *int64
	SourceEncounterID string
	EncounterType     string
	Notes             string
	ReasonForVisit    string
	DataSourceID      *int64
}

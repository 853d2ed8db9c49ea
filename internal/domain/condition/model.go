package condition

// Condition is one problem-list entry. The natural key is
// (patient_id, name, code, onset_date) with empty strings for NULL.
type Condition struct {
	ID           int64  `json:"id"`
	PatientID    int64  `json:"patient_id"`
	EncounterID  *int64 `json:"encounter_id,omitempty"`
	ProviderID   *int64 `json:"provider_id,omitempty"`
	Name         string `json:"name"`
	OnsetDate    string `json:"onset_date"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
	Code         string `json:"code"`
	CodeSystem   string `json:"code_system"`
	CodeDisplay  string `json:"code_display"`
	DataSourceID *int64 `json:"data_source_id,omitempty"`
}

// Code is one row of the condition_code child table. Every code carried by
// the source observation is kept, not just the primary one.
type Code struct {
	ConditionID int64  `json:"condition_id"`
	Code        string `json:"code"`
	CodeSystem  string `json:"code_system"`
	DisplayName string `json:"display_name"`
}

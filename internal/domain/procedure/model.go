package procedure

// Procedure is one performed procedure. The natural key is
// (patient_id, name, code, date) with empty strings for NULL.
type Procedure struct {
	ID           int64  `json:"id"`
	PatientID    int64  `json:"patient_id"`
	EncounterID  *int64 `json:"encounter_id,omitempty"`
	ProviderID   *int64 `json:"provider_id,omitempty"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	CodeSystem   string `json:"code_system"`
	CodeDisplay  string `json:"code_display"`
	Status       string `json:"status"`
	Date         string `json:"date"`
	Notes        string `json:"notes"`
	DataSourceID *int64 `json:"data_source_id,omitempty"`
}

// Code is one row of the procedure_code child table.
type Code struct {
	ProcedureID int64  `json:"procedure_id"`
	Code        string `json:"code"`
	CodeSystem  string `json:"code_system"`
	DisplayName string `json:"display_name"`
}

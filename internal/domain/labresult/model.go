package labresult

// LabResult is one LOINC-coded result observation. The natural key is
// (patient_id, date, encounter_id, loinc_code).
type LabResult struct {
	ID                 int64  `json:"id"`
	PatientID          int64  `json:"patient_id"`
	EncounterID        *int64 `json:"encounter_id,omitempty"`
	LOINCCode          string `json:"loinc_code"`
	TestName           string `json:"test_name"`
	ResultValue        string `json:"result_value"`
	Unit               string `json:"unit"`
	ReferenceRange     string `json:"reference_range"`
	AbnormalFlag       string `json:"abnormal_flag"`
	Date               string `json:"date"`
	OrderingProviderID *int64 `json:"ordering_provider_id,omitempty"`
	PerformingOrgID    *int64 `json:"performing_org_id,omitempty"`
	DataSourceID       *int64 `json:"data_source_id,omitempty"`
}

// Key is the per-patient natural key. A nil encounter id normalizes to -1,
// matching the COALESCE in the unique index.
type Key struct {
	Date        string
	EncounterID int64
	LOINCCode   string
}

func (l *LabResult) naturalKey() Key {
	k := Key{Date: l.Date, EncounterID: -1, LOINCCode: l.LOINCCode}
	if l.EncounterID != nil {
		k.EncounterID = *l.EncounterID
	}
	return k
}

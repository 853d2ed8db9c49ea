package vital

// Vital is one vital-sign measurement. The natural key is
// (patient_id, vital_type, date, value).
type Vital struct {
	ID           int64  `json:"id"`
	PatientID    int64  `json:"patient_id"`
	EncounterID  *int64 `json:"encounter_id,omitempty"`
	VitalType    string `json:"vital_type"`
	Value        string `json:"value"`
	Unit         string `json:"unit"`
	Date         string `json:"date"`
	DataSourceID *int64 `json:"data_source_id,omitempty"`
}

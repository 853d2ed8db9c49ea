package medication

// Medication is one medication administration. The natural key is
// (patient_id, encounter_id, name, dose, start_date); re-ingesting the same
// document trips the unique index rather than a lookup.
type Medication struct {
	ID           int64  `json:"id"`
	PatientID    int64  `json:"patient_id"`
	EncounterID  *int64 `json:"encounter_id,omitempty"`
	Name         string `json:"name"`
	Dose         string `json:"dose"`
	Route        string `json:"route"`
	Frequency    string `json:"frequency"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
	DataSourceID *int64 `json:"data_source_id,omitempty"`
}

// Key is the per-patient natural key. A nil encounter id normalizes to -1,
// matching the COALESCE in the unique index.
type Key struct {
	EncounterID int64
	Name        string
	Dose        string
	StartDate   string
}

func (m *Medication) naturalKey() Key {
	k := Key{EncounterID: -1, Name: m.Name, Dose: m.Dose, StartDate: m.StartDate}
	if m.EncounterID != nil {
		k.EncounterID = *m.EncounterID
	}
	return k
}

package immunization

// Immunization is one administered vaccine. The natural key is
// (patient_id, cvx_code, date_administered); cvx_code may hold several
// comma-separated codes when the source carried translations.
type Immunization struct {
	ID               int64  `json:"id"`
	PatientID        int64  `json:"patient_id"`
	VaccineName      string `json:"vaccine_name"`
	CVXCode          string `json:"cvx_code"`
	DateAdministered string `json:"date_administered"`
	Status           string `json:"status"`
	LotNumber        string `json:"lot_number"`
	Notes            string `json:"notes"`
	DataSourceID     *int64 `json:"data_source_id,omitempty"`
}

// Key is the natural key used for duplicate suppression.
type Key struct {
	CVXCode          string
	DateAdministered string
}

package allergy

// Allergy is one allergy or intolerance observation. The natural key is
// (patient_id, substance_code, substance, onset_date, status).
type Allergy struct {
	ID                   int64  `json:"id"`
	PatientID            int64  `json:"patient_id"`
	EncounterID          *int64 `json:"encounter_id,omitempty"`
	ProviderID           *int64 `json:"provider_id,omitempty"`
	Substance            string `json:"substance"`
	SubstanceCode        string `json:"substance_code"`
	SubstanceCodeSystem  string `json:"substance_code_system"`
	SubstanceCodeDisplay string `json:"substance_code_display"`
	Reaction             string `json:"reaction"`
	ReactionCode         string `json:"reaction_code"`
	ReactionCodeSystem   string `json:"reaction_code_system"`
	Severity             string `json:"severity"`
	Criticality          string `json:"criticality"`
	Status               string `json:"status"`
	OnsetDate            string `json:"onset_date"`
	NotedDate            string `json:"noted_date"`
	SourceAllergyID      string `json:"source_allergy_id"`
	Notes                string `json:"notes"`
	DataSourceID         *int64 `json:"data_source_id,omitempty"`
}

package progressnote

// Note is one clinical progress note. The natural key is
// (patient_id, note_hash, note_title, note_datetime) where note_hash is the
// SHA-1 of the trimmed note text.
type Note struct {
	ID           int64  `json:"id"`
	PatientID    int64  `json:"patient_id"`
	EncounterID  *int64 `json:"encounter_id,omitempty"`
	ProviderID   *int64 `json:"provider_id,omitempty"`
	NoteTitle    string `json:"note_title"`
	NoteDatetime string `json:"note_datetime"`
	NoteText     string `json:"note_text"`
	NoteHash     string `json:"note_hash"`
	SourceNoteID string `json:"source_note_id"`
	DataSourceID *int64 `json:"data_source_id,omitempty"`
}

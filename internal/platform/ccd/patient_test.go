package ccd

import "testing"

func TestParsePatient(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3">
  <recordTarget><patientRole><patient>
    <name><given>Maria</given><family>Gonzalez</family></name>
    <administrativeGenderCode code="F" displayName="Female"/>
    <birthTime value="19850301"/>
  </patient></patientRole></recordTarget>
</ClinicalDocument>`)

	rec := ParsePatient(doc)
	if rec.Given != "Maria" || rec.Family != "Gonzalez" {
		t.Errorf("name = %q %q", rec.Given, rec.Family)
	}
	if rec.BirthDate != "19850301" {
		t.Errorf("BirthDate = %q", rec.BirthDate)
	}
	if rec.Gender != "Female" {
		t.Errorf("Gender = %q", rec.Gender)
	}
	if !rec.HasName() {
		t.Error("HasName() = false")
	}
}

func TestParsePatientGenderCodeFallback(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3">
  <recordTarget><patientRole><patient>
    <name><given>Alex</given></name>
    <administrativeGenderCode code="M"/>
  </patient></patientRole></recordTarget>
</ClinicalDocument>`)

	rec := ParsePatient(doc)
	if rec.Gender != "M" {
		t.Errorf("Gender = %q, want code fallback", rec.Gender)
	}
	if rec.Family != "" {
		t.Errorf("Family = %q", rec.Family)
	}
	if !rec.HasName() {
		t.Error("given name alone should count as a name")
	}
}

func TestParsePatientMissingHeader(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3"/>`)
	rec := ParsePatient(doc)
	if rec.HasName() {
		t.Error("HasName() = true for empty header")
	}
}

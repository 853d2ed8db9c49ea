package ccd

// PatientRecord carries the demographics extracted from the CCD header.
// Empty strings mark absent values.
type PatientRecord struct {
	Given     string
	Family    string
	BirthDate string
	Gender    string
}

// HasName reports whether the record identifies a patient at all. Documents
// without a patient name are skipped by ingestion.
func (p PatientRecord) HasName() bool {
	return p.Given != "" || p.Family != ""
}

// ParsePatient returns core demographics for the patient described in the
// document header.
func ParsePatient(doc *Document) PatientRecord {
	rec := PatientRecord{}

	patient := doc.Root.FindPath("recordTarget", "patientRole", "patient")
	if patient == nil {
		return rec
	}

	if name := patient.Find("name"); name != nil {
		if given := name.Find("given"); given != nil {
			rec.Given = given.CollapsedText()
		}
		if family := name.Find("family"); family != nil {
			rec.Family = family.CollapsedText()
		}
	}

	if birth := patient.Find("birthTime"); birth != nil {
		rec.BirthDate = cleanText(birth.Attr("value"))
		if rec.BirthDate == "" {
			rec.BirthDate = birth.CollapsedText()
		}
	}

	if gender := patient.Find("administrativeGenderCode"); gender != nil {
		rec.Gender = cleanText(gender.Attr("displayName"))
		if rec.Gender == "" {
			rec.Gender = cleanText(gender.Attr("code"))
		}
		if rec.Gender == "" {
			rec.Gender = gender.CollapsedText()
		}
	}

	return rec
}

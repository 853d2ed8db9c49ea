package ccd

import "strings"

// MedicationRecord is one substance administration from the medications
// section or a nested entry.
type MedicationRecord struct {
	Name       string
	RxNorm     string
	Dose       string
	Route      string
	Frequency  string
	Start      string
	End        string
	Status     string
	Notes      string
	Provider   string
	AuthorTime string
	SourceID   string
}

const medicationActivityTemplate = "2.16.840.1.113883.10.20.22.4.16"

// ParseMedications extracts medication activities anywhere in the document.
// Entries without a resolvable name are dropped.
func ParseMedications(doc *Document) []MedicationRecord {
	var medications []MedicationRecord
	for _, med := range doc.Root.Descendants("substanceAdministration") {
		if !hasAnyTemplate(templateRoots(med), medicationActivityTemplate) {
			continue
		}

		var name, rxnorm string
		var codeEl *Element
		for _, mat := range med.Descendants("manufacturedMaterial") {
			codeEl = mat.Find("code")
			break
		}
		if codeEl != nil {
			name = cleanText(codeEl.Attr("displayName"))
			rxnorm = cleanText(codeEl.Attr("code"))
			if name == "" {
				name = doc.referenceText(codeEl, "originalText", "reference")
			}
		}

		sigText := doc.referenceText(med, "text", "reference")

		authorTimeVal := authorTime(med)
		provider := doc.authorName(med)

		start := ""
		end := ""
		if eff := med.Find("effectiveTime"); eff != nil {
			if low := eff.Find("low"); low != nil {
				start = low.Attr("value")
			}
			if high := eff.Find("high"); high != nil {
				end = high.Attr("value")
			}
		}

		route := ""
		if routeEl := med.Find("routeCode"); routeEl != nil {
			route = firstNonEmpty(routeEl.Attr("displayName"), routeEl.Attr("code"))
			if route == "" {
				if orig := routeEl.Find("originalText"); orig != nil {
					route = orig.CollapsedText()
				}
			}
		}

		dose := ""
		if doseEl := med.Find("doseQuantity"); doseEl != nil {
			doseValue := cleanText(doseEl.Attr("value"))
			doseUnit := cleanText(doseEl.Attr("unit"))
			switch {
			case doseValue != "" && doseUnit != "":
				dose = doseValue + " " + doseUnit
			case doseValue != "":
				dose = doseValue
			case doseUnit != "":
				dose = doseUnit
			}
		}

		frequency := medicationFrequency(med)

		status := ""
		for _, rel := range med.FindAll("entryRelationship") {
			obs := rel.Find("observation")
			if obs == nil {
				continue
			}
			code := obs.Find("code")
			if code == nil || code.Attr("code") != "33999-4" {
				continue
			}
			if value := obs.Find("value"); value != nil {
				status = firstNonEmpty(value.Attr("displayName"), value.Attr("code"))
			}
			if status != "" {
				break
			}
		}
		if status == "" {
			if statusEl := med.Find("statusCode"); statusEl != nil {
				status = cleanText(statusEl.Attr("code"))
			}
		}
		if status != "" {
			status = titleCase(status)
		}

		if name == "" {
			name = firstNonEmpty(sigText, rxnorm)
		}
		if name == "" {
			continue
		}

		medications = append(medications, MedicationRecord{
			Name:       name,
			RxNorm:     rxnorm,
			Dose:       dose,
			Route:      route,
			Frequency:  frequency,
			Start:      start,
			End:        end,
			Status:     status,
			Notes:      sigText,
			Provider:   provider,
			AuthorTime: authorTimeVal,
			SourceID:   sourceID(med),
		})
	}
	return medications
}

// medicationFrequency renders the first periodic (PIVL_TS) effectiveTime as
// an "Every <value> <unit>" phrase.
func medicationFrequency(med *Element) string {
	for _, eff := range med.FindAll("effectiveTime") {
		if !strings.EqualFold(eff.AttrNS(XSINamespace, "type"), "PIVL_TS") {
			continue
		}
		frequency := ""
		if period := eff.Find("period"); period != nil {
			value := cleanText(period.Attr("value"))
			unit := cleanText(period.Attr("unit"))
			switch {
			case value != "" && unit != "":
				frequency = "Every " + value + " " + unit
			case unit != "":
				frequency = "Every " + unit
			case value != "":
				frequency = "Every " + value
			}
		}
		if frequency == "" {
			if orig := eff.Find("originalText"); orig != nil {
				frequency = orig.CollapsedText()
			}
		}
		return frequency
	}
	return ""
}

package ccd

// VitalRecord is one vital-sign observation (height, weight, blood pressure,
// temperature, and so on).
type VitalRecord struct {
	Code              string
	VitalType         string
	Value             string
	Unit              string
	Status            string
	Date              string
	EncounterStart    string
	EncounterEnd      string
	EncounterSourceID string
	Provider          string
}

const vitalsSectionCode = "8716-3"

// ParseVitals extracts vital signs from the vital-signs section. Observation
// level times and authors win over the enclosing organizer's.
func ParseVitals(doc *Document) []VitalRecord {
	section := doc.firstSectionByCode(vitalsSectionCode)
	if section == nil {
		return nil
	}

	var vitals []VitalRecord
	for _, entry := range section.FindAll("entry") {
		organizer := entry.Find("organizer")
		if organizer == nil {
			continue
		}

		orgStart, orgEnd := rawSpan(organizer.Find("effectiveTime"))
		orgSourceID := ""
		if idEl := organizer.Find("id"); idEl != nil {
			orgSourceID = firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root"))
		}
		orgProvider := doc.authorName(organizer)

		for _, comp := range organizer.FindAll("component") {
			obs := comp.Find("observation")
			if obs == nil {
				continue
			}
			codeEl := obs.Find("code")
			if codeEl == nil {
				continue
			}

			vitalCode := cleanText(codeEl.Attr("code"))
			vitalType := resolveVitalName(doc, codeEl)

			var value, unit string
			if valEl := obs.Find("value"); valEl != nil {
				value = valueText(valEl)
				unit = firstNonEmpty(valEl.Attr("unit"), valEl.Attr("codeSystemName"))
			}
			if value == "" {
				continue
			}

			status := ""
			if statusEl := obs.Find("statusCode"); statusEl != nil {
				status = statusEl.Attr("code")
			}

			obsStart, obsEnd := rawSpan(obs.Find("effectiveTime"))

			vitals = append(vitals, VitalRecord{
				Code:              vitalCode,
				VitalType:         vitalType,
				Value:             value,
				Unit:              unit,
				Status:            status,
				Date:              firstNonEmpty(obsStart, obsEnd, orgStart, orgEnd),
				EncounterStart:    firstNonEmpty(obsStart, orgStart),
				EncounterEnd:      firstNonEmpty(obsEnd, orgEnd),
				EncounterSourceID: orgSourceID,
				Provider:          firstNonEmpty(doc.authorName(obs), orgProvider),
			})
		}
	}

	return vitals
}

// rawSpan is rawTimeRange with the single-point default applied: an end
// missing from the source falls back to the start.
func rawSpan(node *Element) (start, end string) {
	start, end = rawTimeRange(node)
	if end == "" && start != "" {
		end = start
	}
	return start, end
}

// resolveVitalName picks a readable label for the measured vital.
func resolveVitalName(doc *Document, codeEl *Element) string {
	if display := collapseSpaces(codeEl.Attr("displayName")); display != "" {
		return display
	}
	if original := codeEl.Find("originalText"); original != nil {
		if ref := original.Find("reference"); ref != nil {
			if resolved := doc.TextByID(ref.Attr("value")); resolved != "" {
				return resolved
			}
		}
		if text := original.CollapsedText(); text != "" {
			return text
		}
	}
	for _, tr := range codeEl.FindAll("translation") {
		if translated := collapseSpaces(tr.Attr("displayName")); translated != "" {
			return translated
		}
	}
	return collapseSpaces(codeEl.Attr("code"))
}

package ccd

import "strings"

// Section codes whose narrative carries a reason-for-visit statement.
var reasonForVisitCodes = map[string]bool{
	"29299-5": true, // Reason for visit narrative
	"46241-6": true, // Reason for referral
	"78018-7": true, // Reason for encounter
}

// EncounterRecord is one documented encounter from a CCD, before
// reconciliation against stored rows.
type EncounterRecord struct {
	Code           string
	Type           string
	Status         string
	Mood           string
	Start          string
	End            string
	Provider       string
	Location       string
	Notes          string
	SourceID       string
	ReasonForVisit string
}

// EncounterDate returns the timestamp used as the encounter's natural-key
// date: the start when present, otherwise the end.
func (e EncounterRecord) EncounterDate() string {
	if e.Start != "" {
		return e.Start
	}
	return e.End
}

// ParseEncounters extracts every documented encounter in the CCD. Encounter
// elements appear both in the encounters section and nested inside other
// entries, so the whole tree is scanned. Appointment moods (APT) are planned
// visits, not encounters, and are skipped.
func ParseEncounters(doc *Document) []EncounterRecord {
	reason := extractReasonForVisit(doc)

	// Timestamps equal to the patient's birth date are placeholder values
	// emitted by some exporters and must never win encounter dating.
	invalidTimes := make(map[string]bool)
	if birth := doc.Root.FindPath("recordTarget", "patientRole", "patient", "birthTime"); birth != nil {
		if v := birth.Attr("value"); v != "" {
			invalidTimes[v] = true
			if len(v) >= 8 {
				invalidTimes[v[:8]] = true
			}
		}
	}

	var globalPerson string
	encompassing := doc.Root.FindPath("componentOf", "encompassingEncounter")
	if encompassing != nil {
		globalPerson, _ = providerInfo(encompassing,
			[]string{"encounterParticipant", "assignedEntity", "assignedPerson", "name"},
			[]string{"encounterParticipant", "assignedEntity", "representedOrganization", "name"},
		)
	}
	globalStart, globalEnd := timeRange(encompassing.Find("effectiveTime"))

	serviceEvent := doc.Root.FindPath("documentationOf", "serviceEvent")
	serviceStart, serviceEnd := timeRange(serviceEvent.Find("effectiveTime"))

	var encounters []EncounterRecord
	for _, enc := range doc.Root.Descendants("encounter") {
		mood := enc.Attr("moodCode")
		if mood == "APT" {
			continue
		}

		codeEl := enc.Find("code")
		encounterCode := ""
		encounterType := ""
		if codeEl != nil {
			encounterCode = codeEl.Attr("code")
			encounterType = codeEl.Attr("displayName")
			if encounterType == "" {
				encounterType = doc.referenceText(codeEl, "originalText", "reference")
			}
			if encounterType == "" {
				for _, tr := range codeEl.FindAll("translation") {
					if dn := tr.Attr("displayName"); dn != "" {
						encounterType = dn
						break
					}
				}
			}
		}
		if encounterType == "" {
			encounterType = encounterCode
		}

		description := doc.referenceText(enc, "text", "reference")

		status := ""
		if statusEl := enc.Find("statusCode"); statusEl != nil {
			status = statusEl.Attr("code")
		}

		encStart, encEnd := timeRange(enc.Find("effectiveTime"))
		start, end := mergeTimeCandidates(invalidTimes,
			[2]string{globalStart, globalEnd},
			[2]string{serviceStart, serviceEnd},
			[2]string{encStart, encEnd},
		)

		provider, _ := attendingProvider(enc)
		if provider == "" {
			provider, _ = providerInfo(enc,
				[]string{"performer", "assignedEntity", "assignedPerson", "name"},
				[]string{"performer", "assignedEntity", "representedOrganization", "name"},
			)
		}
		if provider == "" {
			provider = globalPerson
		}

		location := ""
		for _, part := range enc.FindAll("participant") {
			if part.Attr("typeCode") != "LOC" {
				continue
			}
			if name := part.FindPath("participantRole", "playingEntity", "name"); name != nil {
				location = name.CollapsedText()
			}
			break
		}

		var additional []string
		for _, rel := range enc.FindAll("entryRelationship") {
			rel.Walk(func(el *Element) {
				if el.Name != "text" {
					return
				}
				if note := doc.referenceText(el, "reference"); note != "" {
					additional = append(additional, note)
				}
			})
		}

		encounterID := ""
		if idEl := enc.Find("id"); idEl != nil {
			encounterID = firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root"))
		}

		notes := joinClean(
			description,
			joinClean(additional...),
			prefixed("Location: ", location),
			prefixed("Status: ", status),
			prefixed("Mood: ", mood),
			prefixed("Encounter ID: ", encounterID),
		)

		encounters = append(encounters, EncounterRecord{
			Code:           encounterCode,
			Type:           encounterType,
			Status:         status,
			Mood:           mood,
			Start:          start,
			End:            end,
			Provider:       provider,
			Location:       location,
			Notes:          notes,
			SourceID:       encounterID,
			ReasonForVisit: reason,
		})
	}

	return encounters
}

func attendingProvider(enc *Element) (person, org string) {
	for _, part := range enc.FindAll("participant") {
		if part.Attr("typeCode") != "ATND" {
			continue
		}
		return providerInfo(part,
			[]string{"assignedEntity", "assignedPerson", "name"},
			[]string{"assignedEntity", "representedOrganization", "name"},
		)
	}
	return "", ""
}

// mergeTimeCandidates picks the first valid start and end from the ordered
// candidate pairs, skipping values that share a prefix with a known-invalid
// timestamp.
func mergeTimeCandidates(invalid map[string]bool, candidates ...[2]string) (start, end string) {
	valid := func(v string) bool {
		if v == "" {
			return false
		}
		for bad := range invalid {
			if bad != "" && strings.HasPrefix(v, bad) {
				return false
			}
		}
		return true
	}
	for _, c := range candidates {
		if start == "" && valid(c[0]) {
			start = c[0]
		}
		if end == "" && valid(c[1]) {
			end = c[1]
		}
		if start != "" && end != "" {
			break
		}
	}
	return start, end
}

// extractReasonForVisit pulls narrative reason-for-visit text from any
// section flagged by code or title, de-duplicating fragments.
func extractReasonForVisit(doc *Document) string {
	var reasons []string
	seen := make(map[string]bool)
	add := func(raw string) {
		cleaned := collapseSpaces(raw)
		if cleaned != "" && !seen[cleaned] {
			seen[cleaned] = true
			reasons = append(reasons, cleaned)
		}
	}

	for _, section := range doc.Root.Descendants("section") {
		codeVal := ""
		if codeEl := section.Find("code"); codeEl != nil {
			codeVal = codeEl.Attr("code")
		}
		title := ""
		if titleEl := section.Find("title"); titleEl != nil {
			title = strings.ToLower(titleEl.CollapsedText())
		}
		byTitle := strings.Contains(title, "reason") &&
			(strings.Contains(title, "visit") || strings.Contains(title, "encounter") || strings.Contains(title, "referral"))
		if !reasonForVisitCodes[codeVal] && !byTitle {
			continue
		}

		if textEl := section.Find("text"); textEl != nil {
			before := len(reasons)
			textEl.Walk(func(el *Element) {
				for _, c := range el.Children {
					if c.isText() {
						add(c.text)
					}
				}
			})
			if len(reasons) == before {
				add(textEl.FlatText())
			}
		}

		for _, ref := range section.Descendants("reference") {
			if v := ref.Attr("value"); v != "" {
				add(doc.TextByID(v))
			}
		}

		for _, holder := range append(section.Descendants("act"), section.Descendants("observation")...) {
			if textEl := holder.Find("text"); textEl != nil {
				add(textEl.FlatText())
			}
		}
	}

	return strings.Join(reasons, "; ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if cleanText(v) != "" {
			return cleanText(v)
		}
	}
	return ""
}

func joinClean(parts ...string) string {
	var cleaned []string
	for _, p := range parts {
		if c := cleanText(p); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return strings.Join(cleaned, " | ")
}

func prefixed(prefix, value string) string {
	if value == "" {
		return ""
	}
	return prefix + value
}

package ccd

// AllergyRecord is one allergy or intolerance observation.
type AllergyRecord struct {
	Substance            string
	SubstanceCode        string
	SubstanceCodeSystem  string
	SubstanceCodeDisplay string
	Reaction             string
	ReactionCode         string
	ReactionCodeSystem   string
	Severity             string
	Criticality          string
	Status               string
	Onset                string
	NotedDate            string
	Notes                string
	Provider             string
	SourceAllergyID      string
	EncounterSourceID    string
	EncounterStart       string
	EncounterEnd         string
}

var allergySectionCodes = map[string]bool{
	"48765-2": true, // Allergies, adverse reactions, alerts
	"50544-6": true, // Allergy and intolerance
	"75305-3": true, // Allergy summary
}

var allergyObservationTemplates = []string{
	"2.16.840.1.113883.10.20.22.4.7", // Allergy concern act
	"2.16.840.1.113883.10.20.22.4.8", // Allergy observation
}

const (
	reactionObservationTemplate = "2.16.840.1.113883.10.20.22.4.9"
	severityObservationTemplate = "2.16.840.1.113883.10.20.22.4.8.2"
)

// ParseAllergies extracts allergies and intolerances. The substance comes
// from the CSM participant when present, otherwise from the observation
// value.
func ParseAllergies(doc *Document) []AllergyRecord {
	var allergies []AllergyRecord

	for _, section := range doc.sectionsByCode(allergySectionCodes) {
		for _, entry := range section.FindAll("entry") {
			for _, obs := range entry.Descendants("observation") {
				if !hasAnyTemplate(templateRoots(obs), allergyObservationTemplates...) {
					continue
				}

				valueCode, valueSystem, valueDisplay := valueDetails(obs.Find("value"))
				partName, partCode, partSystem, partDisplay := participantSubstance(obs)

				reaction, reactionCode, reactionSystem := reactionDetails(obs)

				status := ""
				if statusEl := obs.Find("statusCode"); statusEl != nil {
					status = cleanText(statusEl.Attr("code"))
				}

				onset, _ := rawTimeRange(obs.Find("effectiveTime"))

				criticality := ""
				if prio := obs.Find("priorityCode"); prio != nil {
					criticality = firstNonEmpty(prio.Attr("displayName"), prio.Attr("code"))
				}

				sourceID := ""
				for _, idEl := range obs.FindAll("id") {
					if sourceID = firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root")); sourceID != "" {
						break
					}
				}

				encSourceID, encStart, encEnd := allergyEncounterHint(obs)

				allergies = append(allergies, AllergyRecord{
					Substance:            firstNonEmpty(partName, valueDisplay, valueCode),
					SubstanceCode:        firstNonEmpty(partCode, valueCode),
					SubstanceCodeSystem:  firstNonEmpty(partSystem, valueSystem),
					SubstanceCodeDisplay: firstNonEmpty(partDisplay, valueDisplay),
					Reaction:             reaction,
					ReactionCode:         reactionCode,
					ReactionCodeSystem:   reactionSystem,
					Severity:             allergySeverity(obs),
					Criticality:          criticality,
					Status:               status,
					Onset:                onset,
					NotedDate:            authorTime(obs),
					Notes:                allergyNotes(doc, obs),
					Provider:             doc.authorName(obs),
					SourceAllergyID:      sourceID,
					EncounterSourceID:    encSourceID,
					EncounterStart:       encStart,
					EncounterEnd:         encEnd,
				})
			}
		}
	}

	return allergies
}

// valueDetails returns the code, code system, and display label from a coded
// value element. The element's text doubles as the display when the
// displayName attribute is absent.
func valueDetails(node *Element) (code, system, display string) {
	if node == nil {
		return "", "", ""
	}
	code = cleanText(node.Attr("code"))
	system = cleanText(node.Attr("codeSystem"))
	display = firstNonEmpty(node.Attr("displayName"), node.FlatText())
	return code, system, display
}

func participantSubstance(obs *Element) (name, code, system, display string) {
	playing := (*Element)(nil)
	for _, part := range obs.FindAll("participant") {
		if part.Attr("typeCode") != "CSM" {
			continue
		}
		playing = part.FindPath("participantRole", "playingEntity")
		break
	}
	if playing == nil {
		return "", "", "", ""
	}
	codeEl := playing.Find("code")
	name = cleanText(codeEl.Attr("displayName"))
	if name == "" {
		if nameEl := playing.Find("name"); nameEl != nil {
			name = nameEl.CollapsedText()
		}
	}
	return name, cleanText(codeEl.Attr("code")), cleanText(codeEl.Attr("codeSystem")), cleanText(codeEl.Attr("displayName"))
}

func reactionDetails(obs *Element) (reaction, code, system string) {
	for _, rel := range obs.FindAll("entryRelationship") {
		typeCode := rel.Attr("typeCode")
		if typeCode != "MFST" && typeCode != "SUBJ" {
			continue
		}
		reactionObs := rel.Find("observation")
		if reactionObs == nil {
			continue
		}
		if !hasAnyTemplate(templateRoots(reactionObs), reactionObservationTemplate) {
			continue
		}
		var display string
		code, system, display = valueDetails(reactionObs.Find("value"))
		reaction = firstNonEmpty(display, code)
		if reaction == "" {
			if textEl := reactionObs.Find("text"); textEl != nil {
				reaction = textEl.CollapsedText()
			}
		}
		return reaction, code, system
	}
	return "", "", ""
}

func allergySeverity(obs *Element) string {
	for _, rel := range obs.FindAll("entryRelationship") {
		severityObs := rel.Find("observation")
		if severityObs == nil {
			continue
		}
		templates := templateRoots(severityObs)
		typeCode := rel.Attr("typeCode")
		if typeCode != "SUBJ" && typeCode != "REFR" && len(templates) == 0 {
			continue
		}
		isSeverity := templates[severityObservationTemplate]
		if code := severityObs.Find("code"); code != nil && code.Attr("code") == "SEV" {
			isSeverity = true
		}
		if !isSeverity {
			continue
		}
		if _, _, display := valueDetails(severityObs.Find("value")); display != "" {
			return display
		}
	}
	return ""
}

func allergyNotes(doc *Document, obs *Element) string {
	if note := doc.referenceText(obs, "text", "reference"); note != "" {
		return note
	}
	if textEl := obs.Find("text"); textEl != nil {
		return textEl.CollapsedText()
	}
	return ""
}

func allergyEncounterHint(obs *Element) (sourceID, start, end string) {
	for _, rel := range obs.FindAll("entryRelationship") {
		enc := rel.Find("encounter")
		if enc == nil {
			continue
		}
		if idEl := enc.Find("id"); idEl != nil {
			sourceID = firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root"))
		}
		start, end = rawTimeRange(enc.Find("effectiveTime"))
		return sourceID, start, end
	}
	return "", "", ""
}

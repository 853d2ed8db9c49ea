package ccd

import "strings"

// LabRecord is one laboratory observation from the results section.
type LabRecord struct {
	EncounterSourceID string
	EncounterStart    string
	EncounterEnd      string
	TestName          string
	LOINC             string
	Value             string
	Unit              string
	ReferenceRange    string
	AbnormalFlag      string
	Date              string
	OrderingProvider  string
	PerformingOrg     string
}

const (
	resultsSectionCode = "30954-2"
	loincCodeSystem    = "2.16.840.1.113883.6.1"
	panelInterpCode    = "56850-1"
)

// ParseLabs extracts LOINC-coded results from the results section. Each
// organizer carries ordering and performing defaults that individual
// observations may override. A 56850-1 interpretation observation sets the
// abnormal-flag fallback for the observations that follow it in the panel.
func ParseLabs(doc *Document) []LabRecord {
	section := doc.firstSectionByCode(resultsSectionCode)
	if section == nil {
		return nil
	}

	var labs []LabRecord
	for _, entry := range section.FindAll("entry") {
		organizer := entry.Find("organizer")
		if organizer == nil {
			continue
		}

		organizerFlag := ""
		ordering := doc.authorName(organizer)
		performing := doc.performerName(organizer)

		var encSourceID, encStart, encEnd string
		if enc := firstDescendant(organizer, "encounter"); enc != nil {
			if idEl := enc.Find("id"); idEl != nil {
				encSourceID = firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root"))
			}
			encStart, encEnd = rawTimeRange(enc.Find("effectiveTime"))
		}

		for _, comp := range organizer.FindAll("component") {
			obs := comp.Find("observation")
			if obs == nil {
				continue
			}
			codeEl := obs.Find("code")
			if codeEl == nil {
				continue
			}

			code := codeEl.Attr("code")
			codeSystem := codeEl.Attr("codeSystem")
			codeSystemName := codeEl.Attr("codeSystemName")
			if codeSystem != loincCodeSystem && !strings.EqualFold(codeSystemName, "LOINC") {
				continue
			}
			if code == "" {
				continue
			}

			// Panel-level interpretation rides along as its own
			// observation and applies to the remaining results.
			if code == panelInterpCode {
				if flag := valueText(obs.Find("value")); flag != "" {
					organizerFlag = flag
				}
				continue
			}

			testName := firstNonEmpty(
				codeEl.Attr("displayName"),
				orig(codeEl),
				code,
			)

			var value, unit string
			if valEl := obs.Find("value"); valEl != nil {
				value = valueText(valEl)
				unit = cleanText(valEl.Attr("unit"))
				xsiType := valEl.AttrNS(XSINamespace, "type")
				if unit == "" && (xsiType == "CD" || xsiType == "CE" || xsiType == "CV") {
					unit = cleanText(valEl.Attr("codeSystemName"))
				}
			}
			if value == "" {
				continue
			}

			date := pointInTime(obs.Find("effectiveTime"))

			refRange := ""
			for _, rr := range obs.Descendants("referenceRange") {
				for _, orEl := range rr.Descendants("observationRange") {
					if textEl := orEl.Find("text"); textEl != nil {
						refRange = textEl.CollapsedText()
						break
					}
				}
				if refRange != "" {
					break
				}
			}

			abnormalFlag := ""
			if interp := obs.Find("interpretationCode"); interp != nil {
				abnormalFlag = firstNonEmpty(interp.Attr("code"), interp.Attr("displayName"))
			}
			if abnormalFlag == "" {
				for _, rr := range obs.Descendants("referenceRange") {
					if interp := firstDescendant(rr, "interpretationCode"); interp != nil {
						abnormalFlag = firstNonEmpty(interp.Attr("code"), interp.Attr("displayName"))
						break
					}
				}
			}
			if abnormalFlag == "" {
				abnormalFlag = organizerFlag
			}

			labs = append(labs, LabRecord{
				EncounterSourceID: encSourceID,
				EncounterStart:    encStart,
				EncounterEnd:      encEnd,
				TestName:          testName,
				LOINC:             code,
				Value:             value,
				Unit:              unit,
				ReferenceRange:    refRange,
				AbnormalFlag:      abnormalFlag,
				Date:              date,
				OrderingProvider:  firstNonEmpty(doc.authorName(obs), ordering),
				PerformingOrg:     firstNonEmpty(doc.performerName(obs), performing),
			})
		}
	}

	return labs
}

// valueText resolves an observation value in the order the value attribute,
// the element's text content, then displayName and code.
func valueText(valEl *Element) string {
	if valEl == nil {
		return ""
	}
	return firstNonEmpty(
		valEl.Attr("value"),
		valEl.FlatText(),
		valEl.Attr("displayName"),
		valEl.Attr("code"),
	)
}

func orig(codeEl *Element) string {
	if o := codeEl.Find("originalText"); o != nil {
		return o.CollapsedText()
	}
	return ""
}

package ccd

import (
	"sort"
	"strings"
)

// CodeRef is one coded value attached to a clinical fact.
type CodeRef struct {
	Code    string
	System  string
	Display string
}

// ConditionRecord is one problem observation from a problem-list or history
// section.
type ConditionRecord struct {
	Name              string
	Codes             []CodeRef
	Status            string
	Start             string
	End               string
	Notes             string
	Provider          string
	AuthorTime        string
	EncounterSourceID string
	EncounterStart    string
	EncounterEnd      string
}

// MainCode returns the primary code for natural-key matching.
func (c ConditionRecord) MainCode() string {
	if len(c.Codes) == 0 {
		return ""
	}
	return c.Codes[0].Code
}

var conditionSectionCodes = map[string]bool{
	"11450-4": true, // Problem list
	"11348-0": true, // History of past illness
	"29299-5": true, // Problem list (report)
}

const problemObservationTemplate = "2.16.840.1.113883.10.20.22.4.4"

// ParseConditions parses problems and conditions from the problem-list
// sections. Duplicate observations (same name, primary code, and onset) are
// collapsed within a document.
func ParseConditions(doc *Document) []ConditionRecord {
	var conditions []ConditionRecord
	seen := make(map[[3]string]bool)

	for _, section := range doc.sectionsByCode(conditionSectionCodes) {
		for _, entry := range section.FindAll("entry") {
			observation := firstDescendant(entry, "observation")
			if observation == nil {
				continue
			}
			if !hasAnyTemplate(templateRoots(observation), problemObservationTemplate) {
				continue
			}

			var noteParts []string
			obsText := doc.referenceText(observation, "text", "reference")
			if obsText != "" {
				noteParts = append(noteParts, obsText)
			}

			valueEl := observation.Find("value")
			var codes []CodeRef
			codes = addCode(codes, observation.Find("code"))
			codes = addCode(codes, valueEl)
			if valueEl != nil {
				for _, tr := range valueEl.FindAll("translation") {
					codes = addCode(codes, tr)
				}
			}

			status := conditionStatus(observation)
			start, end := rawTimeRange(observation.Find("effectiveTime"))

			if concern := entry.Find("act"); concern != nil {
				concernStart, concernEnd := rawTimeRange(concern.Find("effectiveTime"))
				if start == "" {
					start = concernStart
				}
				if end == "" {
					end = concernEnd
				}
			}

			provider := doc.authorName(observation)
			authorTimeVal := authorTime(observation)

			var encounterSourceID, encounterStart, encounterEnd string
			if enc := firstDescendant(entry, "encounter"); enc != nil {
				if idEl := enc.Find("id"); idEl != nil {
					encounterSourceID = firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root"))
				}
				encounterStart, encounterEnd = rawTimeRange(enc.Find("effectiveTime"))
			}

			name := obsText
			if name == "" && valueEl != nil {
				name = firstNonEmpty(valueEl.Attr("displayName"), valueEl.Attr("code"))
			}
			if name == "" && len(codes) > 0 {
				name = firstNonEmpty(codes[0].Display, codes[0].Code)
			}

			for _, ref := range entry.Descendants("reference") {
				if v := ref.Attr("value"); v != "" {
					if note := doc.TextByID(v); note != "" && !contains(noteParts, note) {
						noteParts = append(noteParts, note)
					}
				}
			}

			key := [3]string{name, mainCode(codes), start}
			if seen[key] {
				continue
			}
			seen[key] = true

			conditions = append(conditions, ConditionRecord{
				Name:              name,
				Codes:             codes,
				Status:            status,
				Start:             start,
				End:               end,
				Notes:             sortedUniqueNotes(noteParts),
				Provider:          provider,
				AuthorTime:        authorTimeVal,
				EncounterSourceID: encounterSourceID,
				EncounterStart:    encounterStart,
				EncounterEnd:      encounterEnd,
			})
		}
	}

	return conditions
}

func addCode(codes []CodeRef, el *Element) []CodeRef {
	if el == nil {
		return codes
	}
	code := cleanText(el.Attr("code"))
	if code == "" {
		return codes
	}
	entry := CodeRef{
		Code:    code,
		System:  cleanText(el.Attr("codeSystem")),
		Display: cleanText(el.Attr("displayName")),
	}
	for _, existing := range codes {
		if existing == entry {
			return codes
		}
	}
	return append(codes, entry)
}

func mainCode(codes []CodeRef) string {
	if len(codes) == 0 {
		return ""
	}
	return codes[0].Code
}

func conditionStatus(observation *Element) string {
	for _, rel := range observation.FindAll("entryRelationship") {
		if rel.Attr("typeCode") != "REFR" {
			continue
		}
		obs := rel.Find("observation")
		if obs == nil {
			continue
		}
		if value := obs.Find("value"); value != nil {
			if label := firstNonEmpty(value.Attr("displayName"), value.Attr("code")); label != "" {
				return titleCase(label)
			}
			break
		}
	}
	if statusEl := observation.Find("statusCode"); statusEl != nil {
		if label := cleanText(statusEl.Attr("code")); label != "" {
			return titleCase(label)
		}
	}
	return ""
}

// firstDescendant returns the first named element in document order within
// the subtree, excluding the receiver.
func firstDescendant(el *Element, name string) *Element {
	matches := el.Descendants(name)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func contains(parts []string, candidate string) bool {
	for _, p := range parts {
		if p == candidate {
			return true
		}
	}
	return false
}

// sortedUniqueNotes joins distinct trimmed note fragments in sorted order so
// the stored value is stable across re-ingests.
func sortedUniqueNotes(parts []string) string {
	uniq := make(map[string]bool)
	for _, p := range parts {
		if c := cleanText(p); c != "" {
			uniq[c] = true
		}
	}
	if len(uniq) == 0 {
		return ""
	}
	keys := make([]string, 0, len(uniq))
	for k := range uniq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, " | ")
}

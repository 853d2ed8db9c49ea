package ccd

import "strings"

// ProcedureRecord is one procedure, act, or procedure observation from a
// procedures section.
type ProcedureRecord struct {
	Name              string
	Codes             []CodeRef
	Status            string
	Date              string
	Notes             string
	Provider          string
	EncounterSourceID string
	AuthorTime        string
}

// MainCode returns the primary code for natural-key matching.
func (p ProcedureRecord) MainCode() string {
	return mainCode(p.Codes)
}

var procedureSectionCodes = map[string]bool{
	"47519-4": true, // History of procedures
	"62387-6": true, // Interventional procedures
	"29554-3": true, // Procedure narrative
}

var procedureTemplates = []string{
	"2.16.840.1.113883.10.20.22.4.14", // Procedure activity procedure
	"2.16.840.1.113883.10.20.22.4.13", // Procedure activity observation
	"2.16.840.1.113883.10.20.22.4.12", // Procedure activity act
}

// ParseProcedures extracts procedures from sections matched by code or by a
// "procedure" title. Inside a known procedures section the template filter is
// waived, since some exporters omit the activity templates there.
func ParseProcedures(doc *Document) []ProcedureRecord {
	var procedures []ProcedureRecord

	for _, section := range doc.Root.Descendants("section") {
		sectionCode := ""
		if codeEl := section.Find("code"); codeEl != nil {
			sectionCode = codeEl.Attr("code")
		}
		title := ""
		if titleEl := section.Find("title"); titleEl != nil {
			title = titleEl.CollapsedText()
		}
		if !procedureSectionCodes[sectionCode] && !strings.Contains(strings.ToLower(title), "procedure") {
			continue
		}

		for _, entry := range section.FindAll("entry") {
			proc := firstOfNames(entry, "procedure", "act", "observation")
			if proc == nil {
				continue
			}

			if !hasAnyTemplate(templateRoots(proc), procedureTemplates...) &&
				!procedureSectionCodes[sectionCode] {
				continue
			}

			codeEl := proc.Find("code")
			codes := addCode(nil, codeEl)
			if codeEl != nil {
				for _, tr := range codeEl.FindAll("translation") {
					codes = addCode(codes, tr)
				}
			}

			display := ""
			if codeEl != nil {
				display = codeEl.Attr("displayName")
				if display == "" {
					display = doc.referenceText(codeEl, "originalText", "reference")
				}
			}

			notes := doc.referenceText(proc, "text", "reference")

			status := ""
			if statusEl := proc.Find("statusCode"); statusEl != nil {
				if code := cleanText(statusEl.Attr("code")); code != "" {
					status = titleCase(code)
				}
			}

			date := ""
			if eff := proc.Find("effectiveTime"); eff != nil {
				date = eff.Attr("value")
				if date == "" {
					if low := eff.Find("low"); low != nil {
						date = low.Attr("value")
					}
				}
			}

			provider := doc.performerName(proc)

			encounterSourceID := ""
			if enc := firstDescendant(entry, "encounter"); enc != nil {
				if idEl := enc.Find("id"); idEl != nil {
					encounterSourceID = firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root"))
				}
			}

			name := display
			if name == "" && len(codes) > 0 {
				name = firstNonEmpty(codes[0].Display, codes[0].Code)
			}
			if name == "" {
				name = notes
			}
			if name == "" {
				continue
			}

			procedures = append(procedures, ProcedureRecord{
				Name:              name,
				Codes:             codes,
				Status:            status,
				Date:              date,
				Notes:             notes,
				Provider:          provider,
				EncounterSourceID: encounterSourceID,
				AuthorTime:        authorTime(proc),
			})
		}
	}

	return procedures
}

// firstOfNames returns the first direct child matching any of the names, in
// document order.
func firstOfNames(parent *Element, names ...string) *Element {
	if parent == nil {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	for _, c := range parent.Children {
		if !c.isText() && wanted[c.Name] {
			return c
		}
	}
	return nil
}

package ccd

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// XSINamespace qualifies xsi:type attributes on value elements.
const XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Document wraps a parsed ClinicalDocument tree together with an index of
// narrative nodes addressable by their ID attribute. Section entries refer to
// narrative text with <reference value="#id"/> pointers, so the index is built
// once up front instead of rescanning the tree per lookup.
type Document struct {
	Root    *Element
	narrIdx map[string]string
}

// Parse reads a CCD XML document into a navigable tree.
func Parse(xmlData []byte) (*Document, error) {
	if len(xmlData) == 0 {
		return nil, fmt.Errorf("ccd: XML data is empty")
	}

	root := &Element{}
	dec := xml.NewDecoder(bytes.NewReader(xmlData))
	if err := dec.Decode(root); err != nil {
		return nil, fmt.Errorf("ccd: parse XML: %w", err)
	}
	if root.Name != "ClinicalDocument" {
		return nil, fmt.Errorf("ccd: unexpected root element %q", root.Name)
	}

	doc := &Document{Root: root, narrIdx: make(map[string]string)}
	root.Walk(func(el *Element) {
		if id := el.Attr("ID"); id != "" {
			if _, ok := doc.narrIdx[id]; !ok {
				if text := el.CollapsedText(); text != "" {
					doc.narrIdx[id] = text
				}
			}
		}
	})
	return doc, nil
}

// TextByID resolves a narrative reference such as "#note-1" to its flattened
// text. Returns "" when the reference is empty or unresolvable.
func (d *Document) TextByID(ref string) string {
	if ref == "" {
		return ""
	}
	return d.narrIdx[strings.TrimPrefix(ref, "#")]
}

// referenceText resolves parent/<path...>/reference@value through the
// narrative index.
func (d *Document) referenceText(parent *Element, path ...string) string {
	if parent == nil {
		return ""
	}
	ref := parent.FindPath(path...)
	if ref == nil {
		return ""
	}
	return collapseSpaces(d.TextByID(ref.Attr("value")))
}

// providerName extracts a display name for the person at personPath, falling
// back to the organization at orgPath. Whitespace is collapsed.
func providerName(parent *Element, personPath, orgPath []string) string {
	if parent == nil {
		return ""
	}
	if person := parent.FindPath(personPath...); person != nil {
		if text := person.CollapsedText(); text != "" {
			return text
		}
	}
	if org := parent.FindPath(orgPath...); org != nil {
		return org.CollapsedText()
	}
	return ""
}

// providerInfo extracts both the person name and the organization name,
// without falling the person back to the organization.
func providerInfo(parent *Element, personPath, orgPath []string) (person, org string) {
	if parent == nil {
		return "", ""
	}
	if p := parent.FindPath(personPath...); p != nil {
		person = p.CollapsedText()
	}
	if o := parent.FindPath(orgPath...); o != nil {
		org = o.CollapsedText()
	}
	return person, org
}

// authorName returns the author's person name with organization fallback.
// Most entry-level parsers attribute facts this way.
func (d *Document) authorName(el *Element) string {
	return providerName(el,
		[]string{"author", "assignedAuthor", "assignedPerson", "name"},
		[]string{"author", "assignedAuthor", "representedOrganization", "name"},
	)
}

// performerName returns the performer's person name with organization fallback.
func (d *Document) performerName(el *Element) string {
	return providerName(el,
		[]string{"performer", "assignedEntity", "assignedPerson", "name"},
		[]string{"performer", "assignedEntity", "representedOrganization", "name"},
	)
}

// authorTime returns the entry author's timestamp value, if present.
func authorTime(el *Element) string {
	if t := el.FindPath("author", "time"); t != nil {
		return t.Attr("value")
	}
	return ""
}

// sourceID returns the first usable id extension (or root) on an element.
func sourceID(el *Element) string {
	for _, id := range el.FindAll("id") {
		if v := cleanText(id.Attr("extension")); v != "" {
			return v
		}
		if v := cleanText(id.Attr("root")); v != "" {
			return v
		}
	}
	return ""
}

// templateRoots collects templateId root attributes from an element.
func templateRoots(el *Element) map[string]bool {
	roots := make(map[string]bool)
	for _, tpl := range el.FindAll("templateId") {
		if root := cleanText(tpl.Attr("root")); root != "" {
			roots[root] = true
		}
	}
	return roots
}

func hasAnyTemplate(roots map[string]bool, wanted ...string) bool {
	for _, w := range wanted {
		if roots[w] {
			return true
		}
	}
	return false
}

// sectionsByCode returns every section whose code matches one of the given
// LOINC codes.
func (d *Document) sectionsByCode(codes map[string]bool) []*Element {
	var out []*Element
	for _, section := range d.Root.Descendants("section") {
		code := section.Find("code")
		if code != nil && codes[code.Attr("code")] {
			out = append(out, section)
		}
	}
	return out
}

// firstSectionByCode returns the first section carrying the given LOINC code,
// or nil. Sections flagged nullFlavor="NI" carry no information and are
// treated as absent.
func (d *Document) firstSectionByCode(code string) *Element {
	for _, section := range d.Root.Descendants("section") {
		c := section.Find("code")
		if c == nil || c.Attr("code") != code {
			continue
		}
		if section.Attr("nullFlavor") == "NI" {
			return nil
		}
		return section
	}
	return nil
}

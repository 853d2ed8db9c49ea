package ccd

import (
	"strings"
	"testing"
)

func parseDoc(t *testing.T, xml string) *Document {
	t.Helper()
	doc, err := Parse([]byte(xml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParseRejectsEmptyInput(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestParseRejectsWrongRoot(t *testing.T) {
	_, err := Parse([]byte(`<Bundle xmlns="urn:hl7-org:v3"/>`))
	if err == nil {
		t.Fatal("expected error for non-ClinicalDocument root")
	}
	if !strings.Contains(err.Error(), "unexpected root") {
		t.Fatalf("err = %v", err)
	}
}

func TestTextByIDResolvesNarrative(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3">
  <component><structuredBody><component><section>
    <text>
      <content ID="sig-1">Take   one tablet
        daily</content>
    </text>
  </section></component></structuredBody></component>
</ClinicalDocument>`)

	if got := doc.TextByID("#sig-1"); got != "Take one tablet daily" {
		t.Errorf("TextByID(#sig-1) = %q", got)
	}
	if got := doc.TextByID("sig-1"); got != "Take one tablet daily" {
		t.Errorf("TextByID without hash = %q", got)
	}
	if got := doc.TextByID("#missing"); got != "" {
		t.Errorf("unresolvable reference = %q", got)
	}
	if got := doc.TextByID(""); got != "" {
		t.Errorf("empty reference = %q", got)
	}
}

package ccd

import "testing"

func TestParseVitals(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <component><structuredBody><component><section>
    <code code="8716-3"/>
    <entry>
      <organizer classCode="CLUSTER">
        <id extension="VS-1"/>
        <effectiveTime value="20240115103000"/>
        <author><assignedAuthor><assignedPerson><name>Nina Patel RN</name></assignedPerson></assignedAuthor></author>
        <component><observation>
          <code code="8480-6" displayName="Systolic blood pressure"/>
          <statusCode code="completed"/>
          <value xsi:type="PQ" value="128" unit="mm[Hg]"/>
        </observation></component>
        <component><observation>
          <code code="29463-7"><translation code="3141-9" displayName="Body Weight"/></code>
          <effectiveTime value="20240116090000"/>
          <value xsi:type="PQ" value="72" unit="kg"/>
        </observation></component>
        <component><observation>
          <code code="8310-5" displayName="Body temperature"/>
          <value xsi:type="PQ" unit="Cel"/>
        </observation></component>
      </organizer>
    </entry>
  </section></component></structuredBody></component>
</ClinicalDocument>`)

	vitals := ParseVitals(doc)
	if len(vitals) != 2 {
		t.Fatalf("expected 2 vitals (valueless dropped), got %d", len(vitals))
	}

	bp := vitals[0]
	if bp.Code != "8480-6" || bp.VitalType != "Systolic blood pressure" {
		t.Errorf("code/type = %q %q", bp.Code, bp.VitalType)
	}
	if bp.Value != "128" || bp.Unit != "mm[Hg]" {
		t.Errorf("value/unit = %q %q", bp.Value, bp.Unit)
	}
	if bp.Status != "completed" {
		t.Errorf("Status = %q", bp.Status)
	}
	if bp.Date != "20240115103000" {
		t.Errorf("Date = %q, want the organizer time", bp.Date)
	}
	if bp.EncounterSourceID != "VS-1" {
		t.Errorf("EncounterSourceID = %q", bp.EncounterSourceID)
	}
	if bp.Provider != "Nina Patel RN" {
		t.Errorf("Provider = %q", bp.Provider)
	}

	weight := vitals[1]
	if weight.VitalType != "Body Weight" {
		t.Errorf("VitalType = %q, want the translation display name", weight.VitalType)
	}
	if weight.Date != "20240116090000" {
		t.Errorf("Date = %q, want the observation time over the organizer's", weight.Date)
	}
}

func TestParseVitalsWithoutSection(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3"/>`)
	if vitals := ParseVitals(doc); vitals != nil {
		t.Fatalf("expected nil without a vitals section, got %d", len(vitals))
	}
}

package ccd

import "testing"

func TestParseProcedures(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3">
  <component><structuredBody><component><section>
    <code code="47519-4"/>
    <title>Procedures</title>
    <text><content ID="proc-1">Screening colonoscopy, no findings</content></text>
    <entry>
      <procedure classCode="PROC" moodCode="EVN">
        <templateId root="2.16.840.1.113883.10.20.22.4.14"/>
        <code code="45378" codeSystem="2.16.840.1.113883.6.12" displayName="Colonoscopy">
          <translation code="73761001" codeSystem="2.16.840.1.113883.6.96" displayName="Colonoscopy (procedure)"/>
        </code>
        <text><reference value="#proc-1"/></text>
        <statusCode code="completed"/>
        <effectiveTime value="20230910"/>
        <performer><assignedEntity><assignedPerson><name>Raj Mehta MD</name></assignedPerson></assignedEntity></performer>
        <entryRelationship typeCode="COMP">
          <encounter><id extension="ENC-42"/></encounter>
        </entryRelationship>
      </procedure>
    </entry>
  </section></component></structuredBody></component>
</ClinicalDocument>`)

	procedures := ParseProcedures(doc)
	if len(procedures) != 1 {
		t.Fatalf("expected 1 procedure, got %d", len(procedures))
	}

	proc := procedures[0]
	if proc.Name != "Colonoscopy" {
		t.Errorf("Name = %q", proc.Name)
	}
	if len(proc.Codes) != 2 || proc.Codes[0].Code != "45378" || proc.Codes[1].Code != "73761001" {
		t.Errorf("codes = %+v", proc.Codes)
	}
	if proc.MainCode() != "45378" {
		t.Errorf("MainCode() = %q", proc.MainCode())
	}
	if proc.Status != "Completed" {
		t.Errorf("Status = %q", proc.Status)
	}
	if proc.Date != "20230910" {
		t.Errorf("Date = %q", proc.Date)
	}
	if proc.Notes != "Screening colonoscopy, no findings" {
		t.Errorf("Notes = %q", proc.Notes)
	}
	if proc.Provider != "Raj Mehta MD" {
		t.Errorf("Provider = %q", proc.Provider)
	}
	if proc.EncounterSourceID != "ENC-42" {
		t.Errorf("EncounterSourceID = %q", proc.EncounterSourceID)
	}
}

func TestParseProceduresTemplateWaivedInKnownSection(t *testing.T) {
	// Inside a coded procedures section the activity templates may be
	// missing; outside one they are required.
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3">
  <component><structuredBody>
    <component><section>
      <code code="47519-4"/>
      <entry>
        <procedure>
          <code code="93000" displayName="Electrocardiogram"/>
        </procedure>
      </entry>
    </section></component>
    <component><section>
      <code code="99999-9"/>
      <title>Surgical Procedures</title>
      <entry>
        <act>
          <code code="19120" displayName="Excision of breast lesion"/>
        </act>
      </entry>
    </section></component>
  </structuredBody></component>
</ClinicalDocument>`)

	procedures := ParseProcedures(doc)
	if len(procedures) != 1 {
		t.Fatalf("expected 1 procedure, got %d", len(procedures))
	}
	if procedures[0].Name != "Electrocardiogram" {
		t.Errorf("Name = %q", procedures[0].Name)
	}
}

package ccd

import "testing"

func TestParseAllergies(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <component><structuredBody><component><section>
    <code code="48765-2"/>
    <entry>
      <act classCode="ACT">
        <entryRelationship typeCode="SUBJ">
          <observation classCode="OBS" moodCode="EVN">
            <templateId root="2.16.840.1.113883.10.20.22.4.8"/>
            <id extension="ALG-1"/>
            <statusCode code="active"/>
            <effectiveTime><low value="20150401"/></effectiveTime>
            <priorityCode code="CR" displayName="High"/>
            <value xsi:type="CD" code="419511003" displayName="Propensity to adverse reactions to drug"/>
            <participant typeCode="CSM">
              <participantRole><playingEntity>
                <code code="7980" codeSystem="2.16.840.1.113883.6.88" displayName="Penicillin"/>
              </playingEntity></participantRole>
            </participant>
            <entryRelationship typeCode="MFST">
              <observation>
                <templateId root="2.16.840.1.113883.10.20.22.4.9"/>
                <value xsi:type="CD" code="247472004" codeSystem="2.16.840.1.113883.6.96" displayName="Hives"/>
              </observation>
            </entryRelationship>
            <entryRelationship typeCode="SUBJ">
              <observation>
                <templateId root="2.16.840.1.113883.10.20.22.4.8.2"/>
                <code code="SEV"/>
                <value xsi:type="CD" code="6736007" displayName="Moderate"/>
              </observation>
            </entryRelationship>
            <entryRelationship typeCode="COMP">
              <encounter>
                <id extension="ENC-9"/>
                <effectiveTime><low value="20150401"/></effectiveTime>
              </encounter>
            </entryRelationship>
            <author>
              <time value="20150401120000"/>
              <assignedAuthor><assignedPerson><name>Sarah Chen MD</name></assignedPerson></assignedAuthor>
            </author>
          </observation>
        </entryRelationship>
      </act>
    </entry>
  </section></component></structuredBody></component>
</ClinicalDocument>`)

	allergies := ParseAllergies(doc)
	if len(allergies) != 1 {
		t.Fatalf("expected 1 allergy (reaction and severity are not standalone), got %d", len(allergies))
	}

	alg := allergies[0]
	if alg.Substance != "Penicillin" || alg.SubstanceCode != "7980" {
		t.Errorf("substance = %q %q", alg.Substance, alg.SubstanceCode)
	}
	if alg.SubstanceCodeSystem != "2.16.840.1.113883.6.88" {
		t.Errorf("SubstanceCodeSystem = %q", alg.SubstanceCodeSystem)
	}
	if alg.Reaction != "Hives" || alg.ReactionCode != "247472004" {
		t.Errorf("reaction = %q %q", alg.Reaction, alg.ReactionCode)
	}
	if alg.Severity != "Moderate" {
		t.Errorf("Severity = %q", alg.Severity)
	}
	if alg.Criticality != "High" {
		t.Errorf("Criticality = %q", alg.Criticality)
	}
	if alg.Status != "active" {
		t.Errorf("Status = %q", alg.Status)
	}
	if alg.Onset != "20150401" {
		t.Errorf("Onset = %q", alg.Onset)
	}
	if alg.NotedDate != "20150401120000" {
		t.Errorf("NotedDate = %q", alg.NotedDate)
	}
	if alg.Provider != "Sarah Chen MD" {
		t.Errorf("Provider = %q", alg.Provider)
	}
	if alg.SourceAllergyID != "ALG-1" {
		t.Errorf("SourceAllergyID = %q", alg.SourceAllergyID)
	}
	if alg.EncounterSourceID != "ENC-9" || alg.EncounterStart != "20150401" {
		t.Errorf("encounter hint = %q %q", alg.EncounterSourceID, alg.EncounterStart)
	}
}

func TestParseAllergiesSubstanceFromValue(t *testing.T) {
	doc := parseDoc(t, `<ClinicalDocument xmlns="urn:hl7-org:v3" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <component><structuredBody><component><section>
    <code code="48765-2"/>
    <entry>
      <act>
        <entryRelationship typeCode="SUBJ">
          <observation>
            <templateId root="2.16.840.1.113883.10.20.22.4.8"/>
            <statusCode code="active"/>
            <value xsi:type="CD" code="91936005" codeSystem="2.16.840.1.113883.6.96" displayName="Allergy to penicillin"/>
          </observation>
        </entryRelationship>
      </act>
    </entry>
  </section></component></structuredBody></component>
</ClinicalDocument>`)

	allergies := ParseAllergies(doc)
	if len(allergies) != 1 {
		t.Fatalf("expected 1 allergy, got %d", len(allergies))
	}
	if allergies[0].Substance != "Allergy to penicillin" {
		t.Errorf("Substance = %q, want the coded value fallback", allergies[0].Substance)
	}
	if allergies[0].SubstanceCode != "91936005" {
		t.Errorf("SubstanceCode = %q", allergies[0].SubstanceCode)
	}
}

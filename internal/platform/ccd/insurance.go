package ccd

// InsuranceRecord is one normalized insurance policy from a coverage
// section.
type InsuranceRecord struct {
	PayerName       string
	PayerIdentifier string
	PlanName        string
	CoverageType    string
	PolicyType      string
	MemberID        string
	GroupNumber     string
	SubscriberID    string
	SubscriberName  string
	Relationship    string
	EffectiveDate   string
	ExpirationDate  string
	Status          string
	SourcePolicyID  string
	Notes           string
}

var coverageSectionCodes = map[string]bool{
	"48768-6": true, // Payment sources
	"55109-3": true, // Coverage extensions
	"75274-1": true, // Health plan payment
}

const (
	coverageActivityTemplate  = "2.16.840.1.113883.10.20.22.4.60"
	coverageDetailTemplate    = "2.16.840.1.113883.10.20.22.4.61"
	insuranceProviderTemplate = "2.16.840.1.113883.10.20.1.20"
)

// ParseInsurance extracts policies from coverage activity acts. The container
// act supplies defaults that each nested coverage detail act may override;
// policies with no payer, plan, member, subscriber, or group are dropped.
func ParseInsurance(doc *Document) []InsuranceRecord {
	var policies []InsuranceRecord

	for _, section := range doc.sectionsByCode(coverageSectionCodes) {
		for _, entry := range section.FindAll("entry") {
			for _, container := range entry.FindAll("act") {
				if !hasAnyTemplate(templateRoots(container),
					coverageActivityTemplate, coverageDetailTemplate, insuranceProviderTemplate) {
					continue
				}

				defaults := coverageDefaults(doc, container)

				detailActs := coverageDetailActs(container)
				if len(detailActs) == 0 {
					detailActs = []*Element{container}
				}

				for _, act := range detailActs {
					if policy, ok := buildPolicy(doc, act, defaults); ok {
						policies = append(policies, policy)
					}
				}
			}
		}
	}

	return policies
}

func coverageDetailActs(container *Element) []*Element {
	var acts []*Element
	for _, rel := range container.FindAll("entryRelationship") {
		act := rel.Find("act")
		if act == nil {
			continue
		}
		if templateRoots(act)[coverageDetailTemplate] {
			acts = append(acts, act)
		}
	}
	return acts
}

// coverageDefaults captures container-act metadata used as fallbacks for
// each nested detail act.
func coverageDefaults(doc *Document, act *Element) InsuranceRecord {
	effective, expiration := rawTimeRange(act.Find("effectiveTime"))
	if effective != "" && expiration == effective {
		expiration = ""
	}

	status := ""
	if statusEl := act.Find("statusCode"); statusEl != nil {
		status = cleanText(statusEl.Attr("code"))
	}

	coverageType := ""
	if codeEl := act.Find("code"); codeEl != nil {
		coverageType = firstNonEmpty(codeEl.Attr("displayName"), codeEl.Attr("code"))
	}

	group := firstActIdentifier(act)

	return InsuranceRecord{
		PayerName:       payerName(act),
		PayerIdentifier: payerIdentifier(act),
		PlanName:        planName(doc, act),
		CoverageType:    coverageType,
		PolicyType:      cleanText(act.Attr("classCode")),
		EffectiveDate:   effective,
		ExpirationDate:  expiration,
		Status:          status,
		GroupNumber:     group,
		SourcePolicyID:  group,
		Notes:           policyNotes(doc, act),
	}
}

func buildPolicy(doc *Document, act *Element, defaults InsuranceRecord) (InsuranceRecord, bool) {
	var coverageType string
	if codeEl := act.Find("code"); codeEl != nil {
		coverageType = firstNonEmpty(codeEl.Attr("displayName"), codeEl.Attr("code"))
	}

	detailGroup := firstActIdentifier(act)

	effective, expiration := rawTimeRange(act.Find("effectiveTime"))
	if effective != "" && expiration == effective {
		expiration = ""
	}

	covID, covRelationship, covName, covStart, covEnd := coverageParticipant(doc, act)
	subID, subRelationship, subName := participantRole(doc, act, "SUB")
	hldID, hldRelationship, hldName := participantRole(doc, act, "HLD")

	effectiveDate := firstNonEmpty(covStart, effective, defaults.EffectiveDate)
	expirationDate := firstNonEmpty(covEnd, expiration, defaults.ExpirationDate)
	if expirationDate != "" && expirationDate == effectiveDate {
		expirationDate = ""
	}

	status := defaults.Status
	if statusEl := act.Find("statusCode"); statusEl != nil {
		status = firstNonEmpty(statusEl.Attr("code"), defaults.Status)
	}

	policy := InsuranceRecord{
		PayerName:       firstNonEmpty(payerName(act), defaults.PayerName),
		PayerIdentifier: firstNonEmpty(payerIdentifier(act), defaults.PayerIdentifier),
		PlanName:        firstNonEmpty(planName(doc, act), defaults.PlanName),
		CoverageType:    firstNonEmpty(coverageType, defaults.CoverageType),
		PolicyType:      firstNonEmpty(act.Attr("classCode"), defaults.PolicyType),
		MemberID:        firstNonEmpty(covID, hldID),
		GroupNumber:     firstNonEmpty(detailGroup, defaults.GroupNumber),
		SubscriberID:    firstNonEmpty(subID, covID),
		SubscriberName:  firstNonEmpty(subName, covName, hldName),
		Relationship:    firstNonEmpty(covRelationship, subRelationship, hldRelationship),
		EffectiveDate:   effectiveDate,
		ExpirationDate:  expirationDate,
		Status:          status,
		SourcePolicyID:  firstNonEmpty(detailGroup, defaults.SourcePolicyID),
		Notes:           firstNonEmpty(policyNotes(doc, act), defaults.Notes),
	}

	ok := policy.PayerName != "" || policy.PlanName != "" || policy.MemberID != "" ||
		policy.SubscriberID != "" || policy.GroupNumber != ""
	return policy, ok
}

func payerName(act *Element) string {
	performer := act.FindPath("performer", "assignedEntity")
	if performer == nil {
		return ""
	}
	if org := performer.FindPath("representedOrganization", "name"); org != nil {
		if text := org.CollapsedText(); text != "" {
			return text
		}
	}
	if person := performer.FindPath("assignedPerson", "name"); person != nil {
		return person.CollapsedText()
	}
	return ""
}

func payerIdentifier(act *Element) string {
	performer := act.FindPath("performer", "assignedEntity")
	if performer == nil {
		return ""
	}
	for _, idEl := range performer.FindAll("id") {
		if candidate := firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root")); candidate != "" {
			return candidate
		}
	}
	return ""
}

// planName resolves the plan label from the act's narrative, nested acts,
// then the title.
func planName(doc *Document, act *Element) string {
	if name := policyNotes(doc, act); name != "" {
		return name
	}
	for _, rel := range act.FindAll("entryRelationship") {
		relAct := rel.Find("act")
		if relAct == nil {
			continue
		}
		if text := policyNotes(doc, relAct); text != "" {
			return text
		}
	}
	if title := act.Find("title"); title != nil {
		return title.CollapsedText()
	}
	return ""
}

func policyNotes(doc *Document, act *Element) string {
	if resolved := doc.referenceText(act, "text", "reference"); resolved != "" {
		return resolved
	}
	if textEl := act.Find("text"); textEl != nil {
		return textEl.CollapsedText()
	}
	return ""
}

func firstActIdentifier(act *Element) string {
	for _, idEl := range act.FindAll("id") {
		if candidate := firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root")); candidate != "" {
			return candidate
		}
	}
	return ""
}

// originalTextValue returns a code element's originalText, inline or via a
// narrative reference.
func originalTextValue(doc *Document, codeEl *Element) string {
	orig := codeEl.Find("originalText")
	if orig == nil {
		return ""
	}
	if text := orig.CollapsedText(); text != "" {
		return text
	}
	if ref := orig.Find("reference"); ref != nil {
		return doc.TextByID(ref.Attr("value"))
	}
	return ""
}

func participantRole(doc *Document, act *Element, typeCode string) (id, relationship, name string) {
	var role *Element
	for _, part := range act.FindAll("participant") {
		if part.Attr("typeCode") != typeCode {
			continue
		}
		role = part.Find("participantRole")
		break
	}
	if role == nil {
		return "", "", ""
	}
	return roleDetails(doc, role)
}

func coverageParticipant(doc *Document, act *Element) (id, relationship, name, start, end string) {
	var role *Element
	for _, part := range act.FindAll("participant") {
		if part.Attr("typeCode") != "COV" {
			continue
		}
		role = part.Find("participantRole")
		break
	}
	if role == nil {
		return "", "", "", "", ""
	}
	id, relationship, name = roleDetails(doc, role)
	start, end = rawTimeRange(role.Find("time"))
	return id, relationship, name, start, end
}

func roleDetails(doc *Document, role *Element) (id, relationship, name string) {
	if idEl := role.Find("id"); idEl != nil {
		id = firstNonEmpty(idEl.Attr("extension"), idEl.Attr("root"))
	}
	if codeEl := role.Find("code"); codeEl != nil {
		relationship = firstNonEmpty(
			originalTextValue(doc, codeEl),
			codeEl.Attr("displayName"),
			codeEl.Attr("code"),
		)
	}
	if nameEl := role.FindPath("playingEntity", "name"); nameEl != nil {
		name = nameEl.CollapsedText()
	}
	return id, relationship, name
}

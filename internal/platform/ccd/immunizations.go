package ccd

// ImmunizationRecord is one vaccine administration from the immunizations
// section.
type ImmunizationRecord struct {
	VaccineName string
	Date        string
	Status      string
	CVXCodes    []string
	ProductName string
	LotNumber   string
}

const immunizationsSectionCode = "11369-6"

// cvxCodeSystems are the code systems accepted as CVX vaccine identifiers.
var cvxCodeSystems = map[string]bool{
	"2.16.840.1.113883.12.292": true,
	"2.16.840.1.113883.6.59":   true, // legacy SNOMED/CVX mapping
}

// ParseImmunizations extracts administered vaccines from the immunizations
// section. CVX codes are gathered from both the administration code and the
// manufactured material code, translations included.
func ParseImmunizations(doc *Document) []ImmunizationRecord {
	section := doc.firstSectionByCode(immunizationsSectionCode)
	if section == nil {
		return nil
	}

	var immunizations []ImmunizationRecord
	for _, entry := range section.FindAll("entry") {
		admin := entry.Find("substanceAdministration")
		if admin == nil {
			continue
		}

		status := ""
		if statusEl := admin.Find("statusCode"); statusEl != nil {
			status = statusEl.Attr("code")
		}

		date := pointInTime(admin.Find("effectiveTime"))

		codeEl := admin.Find("code")
		material := admin.FindPath("consumable", "manufacturedProduct", "manufacturedMaterial")
		materialCodeEl := material.Find("code")

		productName := ""
		if nameEl := material.Find("name"); nameEl != nil {
			productName = nameEl.CollapsedText()
		}

		vaccineName := firstNonEmpty(
			codeEl.Attr("displayName"),
			doc.referenceText(codeEl, "originalText", "reference"),
			doc.referenceText(admin, "text", "reference"),
			materialCodeEl.Attr("displayName"),
			doc.referenceText(materialCodeEl, "originalText", "reference"),
			productName,
			codeEl.Attr("code"),
			materialCodeEl.Attr("code"),
		)

		lotNumber := ""
		if lotEl := material.Find("lotNumberText"); lotEl != nil {
			lotNumber = lotEl.CollapsedText()
		}

		cvx := collectCVXCodes(nil, codeEl)
		cvx = collectCVXCodes(cvx, materialCodeEl)

		immunizations = append(immunizations, ImmunizationRecord{
			VaccineName: vaccineName,
			Date:        date,
			Status:      status,
			CVXCodes:    uniqueNonEmpty(cvx),
			ProductName: productName,
			LotNumber:   lotNumber,
		})
	}

	return immunizations
}

// collectCVXCodes appends CVX identifiers found on the code element and its
// translations, recursively.
func collectCVXCodes(codes []string, codeEl *Element) []string {
	if codeEl == nil {
		return codes
	}
	if code := codeEl.Attr("code"); code != "" && cvxCodeSystems[codeEl.Attr("codeSystem")] {
		codes = append(codes, code)
	}
	for _, tr := range codeEl.FindAll("translation") {
		codes = collectCVXCodes(codes, tr)
	}
	return codes
}

func uniqueNonEmpty(values []string) []string {
	var unique []string
	seen := make(map[string]bool)
	for _, v := range values {
		cleaned := collapseSpaces(v)
		if cleaned != "" && !seen[cleaned] {
			seen[cleaned] = true
			unique = append(unique, cleaned)
		}
	}
	return unique
}

package provider

import (
	"regexp"
	"strings"
)

// orgKeywords flag names that denote an organization rather than a person.
// The leading spaces keep "health" from matching inside "Healey".
var orgKeywords = []string{
	" hospital",
	" clinic",
	" health",
	" medical",
	" center",
	" centre",
	" physicians",
	" associates",
	" services",
	" department",
	" university",
	" institute",
	" group",
	" surgery",
	" of ",
}

var orgTokens = map[string]bool{
	"of": true, "for": true, "and": true, "medical": true, "health": true,
	"hospital": true, "clinic": true, "physicians": true, "associates": true,
	"services": true, "group": true, "institute": true, "university": true,
}

var (
	credentialPattern = regexp.MustCompile(`^[A-Z]{2,}(?:[./][A-Z]{2,})*$`)
	nonLetterPattern  = regexp.MustCompile(`[^A-Za-z./]`)
	suffixPattern     = regexp.MustCompile(`^(.*?)([A-Z]{2,})$`)
	camelPattern      = regexp.MustCompile(`[A-Z][^A-Z]*`)
)

// NormalizeSpaces lowercases a string and removes all whitespace.
func NormalizeSpaces(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), ""))
}

// ParsePersonName splits a raw provider name into given name, family name,
// and credentials. Supports "Jane Smith MD", the comma-inverted
// "Smith, Jane MD", comma-separated credentials ("Jane Smith, MD"), a
// credential suffix glued to a single token ("SmithMD"), and a lone
// camel-cased token ("JaneSmith").
func ParsePersonName(raw string) (given, family, credentials string) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", "", ""
	}

	var parts []string
	for _, part := range strings.Split(name, ",") {
		if p := strings.TrimSpace(part); p != "" {
			parts = append(parts, p)
		}
	}
	namePart := name
	var credentialTokens []string
	if len(parts) > 1 {
		// "Family, Given CRED" when name tokens survive the credential
		// strip on the comma remainder, otherwise "Given Family, CRED".
		rest := strings.Fields(strings.Join(parts[1:], " "))
		rest, credentialTokens = stripCredentials(rest)
		if len(rest) > 0 {
			return strings.Join(rest, " "), parts[0], strings.Join(credentialTokens, " ")
		}
		namePart = parts[0]
	} else if len(parts) == 1 {
		namePart = parts[0]
	}

	tokens := strings.Fields(namePart)
	if len(tokens) == 0 {
		return "", "", strings.Join(credentialTokens, " ")
	}

	var stripped []string
	tokens, stripped = stripCredentials(tokens)
	credentialTokens = append(stripped, credentialTokens...)

	if len(tokens) == 1 {
		token := tokens[0]
		clean := strings.ReplaceAll(nonLetterPattern.ReplaceAllString(token, ""), ".", "")
		if m := suffixPattern.FindStringSubmatch(clean); m != nil && m[1] != "" {
			base := token[:len(token)-len(m[2])]
			credentialTokens = append([]string{m[2]}, credentialTokens...)
			tokens = []string{base}
		}
	}

	if len(tokens) == 1 {
		camelParts := camelPattern.FindAllString(tokens[0], -1)
		if len(camelParts) >= 2 {
			tokens = []string{
				strings.Join(camelParts[:len(camelParts)-1], " "),
				camelParts[len(camelParts)-1],
			}
		}
	}

	if len(tokens) == 1 {
		family = tokens[0]
	} else if len(tokens) > 1 {
		family = tokens[len(tokens)-1]
		given = strings.Join(tokens[:len(tokens)-1], " ")
	}

	return given, family, strings.TrimSpace(strings.Join(credentialTokens, " "))
}

// stripCredentials removes trailing all-caps credential tokens (MD, RN,
// PA-C) from the token list, returning the remainder and the stripped
// credentials in their original order.
func stripCredentials(tokens []string) (remaining, credentials []string) {
	remaining = tokens
	for len(remaining) > 0 {
		token := remaining[len(remaining)-1]
		clean := strings.ReplaceAll(nonLetterPattern.ReplaceAllString(token, ""), ".", "")
		if !credentialPattern.MatchString(clean) {
			break
		}
		credentials = append([]string{clean}, credentials...)
		remaining = remaining[:len(remaining)-1]
	}
	return remaining, credentials
}

// NormalizePersonKey builds the dedup key for a person from the parsed name
// components, falling back to the whole raw name.
func NormalizePersonKey(given, family, fallback string) string {
	base := strings.Join(strings.Fields(given+family), "")
	if base != "" {
		return strings.ToLower(base)
	}
	return NormalizeSpaces(fallback)
}

// NormalizeOrganizationKey builds the dedup key for an organization.
func NormalizeOrganizationKey(name string) string {
	return NormalizeSpaces(name)
}

// IsProbableOrganization reports whether a raw provider name looks like an
// organization rather than a person.
func IsProbableOrganization(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return false
	}
	for _, keyword := range orgKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	tokens := strings.Fields(lower)
	if len(tokens) >= 3 {
		for _, token := range tokens {
			if orgTokens[token] {
				return true
			}
		}
	}
	return false
}

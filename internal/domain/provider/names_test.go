package provider

import "testing"

func TestParsePersonName(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		given       string
		family      string
		credentials string
	}{
		{"comma inverted", "Smith, Jane MD", "Jane", "Smith", "MD"},
		{"comma credentials", "Jane Smith, MD", "Jane", "Smith", "MD"},
		{"trailing credentials", "Jane Smith MD", "Jane", "Smith", "MD"},
		{"dotted credentials", "Jane Smith M.D.", "Jane", "Smith", "MD"},
		{"multiple credentials", "Jane Smith MD PHD", "Jane", "Smith", "MD PHD"},
		{"glued suffix", "SmithMD", "", "Smith", "MD"},
		{"camel case", "JaneSmith", "Jane", "Smith", ""},
		{"single token", "Smith", "", "Smith", ""},
		{"middle name", "Jane Q Smith", "Jane Q", "Smith", ""},
		{"empty", "   ", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			given, family, credentials := ParsePersonName(tt.raw)
			if given != tt.given || family != tt.family || credentials != tt.credentials {
				t.Errorf("ParsePersonName(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.raw, given, family, credentials, tt.given, tt.family, tt.credentials)
			}
		})
	}
}

func TestNormalizePersonKey(t *testing.T) {
	if got := NormalizePersonKey("Jane", "Smith", "ignored"); got != "janesmith" {
		t.Errorf("NormalizePersonKey = %q, want janesmith", got)
	}
	if got := NormalizePersonKey("", "", "Dr Jane Smith"); got != "drjanesmith" {
		t.Errorf("fallback NormalizePersonKey = %q, want drjanesmith", got)
	}
}

func TestIsProbableOrganization(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Aberdeen Medical Group", true},
		{"St. Mary Hospital", true},
		{"Department of Oncology", true},
		{"University Physicians", true},
		{"Jane Smith", false},
		{"Healey", false},
		{"", false},
		{"Care For All Patients", true},
	}
	for _, tt := range tests {
		if got := IsProbableOrganization(tt.name); got != tt.want {
			t.Errorf("IsProbableOrganization(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeOrganizationKey(t *testing.T) {
	if got := NormalizeOrganizationKey("Aberdeen  Medical Group"); got != "aberdeenmedicalgroup" {
		t.Errorf("NormalizeOrganizationKey = %q, want aberdeenmedicalgroup", got)
	}
}

package facematch

import (
	"strings"
	"testing"
)

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Asha", "Asha"},
		{"Zoë Novák", "Zoe Novak"},
		{"Jiří", "Jiri"},
		{"Ramírez", "Ramirez"},
		{"Lakṣmī", "Laksmi"},
		{"Śrīnivāsan", "Srinivasan"},
		{"सुनीता", "सुनीता"},
		{"முருகன்", "முருகன்"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Zoë Novák", "zoe novak"},
		{"Anne-Marie", "anne marie"},
		{"K. Ramírez", "k ramirez"},
		{"  Priya   SHARMA ", "priya sharma"},
		{"Śrīnivāsan R.", "srinivasan r"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizePersonName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePersonName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonName_SearchMatch(t *testing.T) {
	query := NormalizePersonName("srinivasan")
	if !strings.Contains(NormalizePersonName("Dr. Śrīnivāsan Iyer"), query) {
		t.Errorf("expected %q to match Śrīnivāsan", query)
	}
}

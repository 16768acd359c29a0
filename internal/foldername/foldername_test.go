package foldername

import (
	"strings"
	"testing"
)

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
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
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"jan-novák", "jan novak"},
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

func TestDeriveFolderSafe(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jane Doe", "Jane_Doe"},
		{"Jiří Novák", "Jiri_Novak"},
		{"  weird!!  spaces  ", "weird_spaces"},
		{"O'Brien, Jr.", "OBrien_Jr"},
		{"already-hyphenated", "already-hyphenated"},
		{"", "Person"},
		{"!!!", "Person"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := DeriveFolderSafe(tt.input)
			if result != tt.expected {
				t.Errorf("DeriveFolderSafe(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDeriveFolderSafe_CapsLength(t *testing.T) {
	long := strings.Repeat("a", 200)

	result := DeriveFolderSafe(long)

	if len(result) > MaxLength {
		t.Errorf("expected length <= %d, got %d", MaxLength, len(result))
	}
}

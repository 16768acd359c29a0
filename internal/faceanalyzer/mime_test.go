package faceanalyzer

import "testing"

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, "image/png"},
		{"gif", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61}, "image/gif"},
		{"webp", append([]byte{0x52, 0x49, 0x46, 0x46, 0, 0, 0, 0}, []byte{0x57, 0x45, 0x42, 0x50}...), "image/webp"},
		{"riff-not-webp", []byte{0x52, 0x49, 0x46, 0x46, 0, 0, 0, 0, 0, 0, 0, 0}, "application/octet-stream"},
		{"unknown", []byte{0x00, 0x01, 0x02}, "application/octet-stream"},
		{"empty", []byte{}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectMIMEType(tt.data)
			if got != tt.expected {
				t.Errorf("detectMIMEType(%s) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

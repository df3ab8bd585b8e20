package images

import "testing"

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		valid  bool
	}{
		{StatusPending, true},
		{StatusAnalyzed, true},
		{StatusFailed, true},
		{Status("processing"), false},
		{Status(""), false},
	}

	for _, tc := range tests {
		if got := tc.status.Valid(); got != tc.valid {
			t.Errorf("Status(%q).Valid(): expected %v, got %v", tc.status, tc.valid, got)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"jpeg", "image/jpeg"},
		{"png", "image/png"},
		{"", "image/jpeg"},
		{"tiff", "image/jpeg"},
	}

	for _, tc := range tests {
		if got := contentType(tc.format); got != tc.want {
			t.Errorf("contentType(%q): expected %q, got %q", tc.format, tc.want, got)
		}
	}
}

package documents

import (
	"net/http"
	"testing"
)

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		valid  bool
	}{
		{StatusPending, true},
		{StatusProcessing, true},
		{StatusCompleted, true},
		{StatusFailed, true},
		{Status("archived"), false},
		{Status(""), false},
	}

	for _, tc := range tests {
		if got := tc.status.Valid(); got != tc.valid {
			t.Errorf("Status(%q).Valid(): expected %v, got %v", tc.status, tc.valid, got)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tc := range tests {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("Status(%q).Terminal(): expected %v, got %v", tc.status, tc.terminal, got)
		}
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ErrNotFound, http.StatusNotFound},
		{"duplicate", ErrDuplicate, http.StatusConflict},
		{"too large", ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"invalid file", ErrInvalidFile, http.StatusBadRequest},
		{"not pdf", ErrNotPDF, http.StatusBadRequest},
		{"unknown", http.ErrBodyNotAllowed, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MapHTTPStatus(tc.err); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestDetectContentType(t *testing.T) {
	pdfBytes := []byte("%PDF-1.7\n%âãÏÓ\n")

	tests := []struct {
		name   string
		header string
		data   []byte
		want   string
	}{
		{"explicit header wins", "application/pdf", []byte("anything"), "application/pdf"},
		{"octet-stream sniffed", "application/octet-stream", pdfBytes, "application/pdf"},
		{"empty header sniffed", "", pdfBytes, "application/pdf"},
		{"plain text rejected upstream", "", []byte("hello world"), "text/plain"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectContentType(tc.header, tc.data); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

package keywords

import (
	"strings"
	"testing"

	"github.com/docsight/docsight/internal/images"
	"github.com/google/uuid"
)

func TestDerive(t *testing.T) {
	documentID := uuid.New()

	analysis := images.Analysis{
		Text: "Invoice INV-2024 total due: $450. Invoice attached.",
		Labels: []images.Label{
			{Description: "Document", Score: 0.97},
			{Description: "Invoice", Score: 0.88},
			{Description: "document", Score: 0.42},
		},
		Objects: []images.Object{
			{Name: "Table", Score: 0.91},
		},
	}

	entries := Derive(documentID, 2, analysis)

	byKey := make(map[string]Entry)
	for _, e := range entries {
		if e.DocumentID != documentID {
			t.Errorf("entry %q: wrong document id", e.Keyword)
		}
		if e.PageNumber != 2 {
			t.Errorf("entry %q: wrong page number %d", e.Keyword, e.PageNumber)
		}
		byKey[string(e.Kind)+":"+e.Keyword] = e
	}

	// Duplicate label keeps its first, higher-confidence occurrence.
	if got := byKey["label:document"]; got.Confidence != 0.97 {
		t.Errorf("expected first document label to win, got confidence %v", got.Confidence)
	}
	if got := byKey["object:table"]; got.Confidence != 0.91 {
		t.Errorf("expected table object entry, got %+v", got)
	}

	// Text tokens are normalized, length-filtered, and deduplicated.
	if _, ok := byKey["text:invoice"]; !ok {
		t.Error("expected invoice text keyword")
	}
	if _, ok := byKey["text:450"]; !ok {
		t.Error("expected numeric token to survive")
	}
	if _, ok := byKey["text:inv"]; !ok {
		t.Error("expected hyphen-split token inv")
	}
	for key := range byKey {
		if strings.HasSuffix(key, ":$450") || strings.HasSuffix(key, ":due:") {
			t.Errorf("punctuation leaked into keyword %q", key)
		}
	}

	// The same word from labels and text yields one entry per kind.
	textInvoices := 0
	for _, e := range entries {
		if e.Kind == KindText && e.Keyword == "invoice" {
			textInvoices++
		}
	}
	if textInvoices != 1 {
		t.Errorf("expected one text invoice entry, got %d", textInvoices)
	}
}

func TestDeriveEmptyAnalysis(t *testing.T) {
	entries := Derive(uuid.New(), 1, images.Analysis{})
	if len(entries) != 0 {
		t.Errorf("expected no entries for an empty payload, got %d", len(entries))
	}
}

func TestDeriveCapsTextKeywords(t *testing.T) {
	words := make([]string, 0, maxTextKeywords+50)
	for i := 0; i < maxTextKeywords+50; i++ {
		words = append(words, "word"+strings.Repeat("x", i%5)+uuid.NewString()[:8])
	}

	entries := Derive(uuid.New(), 1, images.Analysis{Text: strings.Join(words, " ")})
	if len(entries) > maxTextKeywords {
		t.Errorf("expected at most %d text entries, got %d", maxTextKeywords, len(entries))
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"short tokens dropped", "a an the cat", []string{"the", "cat"}},
		{"punctuation split", "total: $1,250.00 (paid)", []string{"total", "250", "paid"}},
		{"unicode letters kept", "Zürich café", []string{"Zürich", "café"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.text)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("token %d: expected %q, got %q", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Invoice  ", "invoice"},
		{"TABLE", "table"},
		{"", ""},
		{"  ", ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

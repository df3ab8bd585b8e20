package keywords

import (
	"strings"
	"unicode"

	"github.com/docsight/docsight/internal/images"
	"github.com/google/uuid"
)

// Minimum token length and per-page cap for text-derived keywords. Short
// tokens are almost always noise from OCR artifacts.
const (
	minTokenLength  = 3
	maxTextKeywords = 512
	textConfidence  = 1.0
)

// Derive computes the keyword entries for one page from its analysis payload.
// Keywords are normalized to lower-cased, trimmed form; duplicates within a
// kind keep their first (highest-relevance) occurrence.
func Derive(documentID uuid.UUID, pageNumber int, analysis images.Analysis) []Entry {
	var entries []Entry
	seen := make(map[string]bool)

	add := func(keyword string, kind Kind, confidence float64) {
		keyword = Normalize(keyword)
		if keyword == "" {
			return
		}
		key := string(kind) + ":" + keyword
		if seen[key] {
			return
		}
		seen[key] = true
		entries = append(entries, Entry{
			DocumentID: documentID,
			PageNumber: pageNumber,
			Keyword:    keyword,
			Kind:       kind,
			Confidence: confidence,
		})
	}

	for _, label := range analysis.Labels {
		add(label.Description, KindLabel, label.Score)
	}
	for _, object := range analysis.Objects {
		add(object.Name, KindObject, object.Score)
	}

	count := 0
	for _, token := range Tokenize(analysis.Text) {
		if count >= maxTextKeywords {
			break
		}
		before := len(entries)
		add(token, KindText, textConfidence)
		if len(entries) > before {
			count++
		}
	}

	return entries
}

// Normalize lower-cases and trims a keyword for case-insensitive matching.
func Normalize(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// Tokenize splits extracted page text into candidate keyword tokens,
// discarding anything shorter than the minimum length.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

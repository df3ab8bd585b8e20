package keywords

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docsight/docsight/pkg/pagination"
)

type fakeSystem struct {
	System
	suggestions []string
	suggestTerm string
}

func (f *fakeSystem) Suggest(_ context.Context, term string) ([]string, error) {
	f.suggestTerm = term
	return f.suggestions, nil
}

func newTestHandler(sys *fakeSystem) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(sys, logger, pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})
}

func TestSuggestionsReturnsMatches(t *testing.T) {
	sys := &fakeSystem{suggestions: []string{"invoice", "invoice number"}}
	handler := newTestHandler(sys)

	req := httptest.NewRequest(http.MethodGet, "/api/search/suggestions?q=inv", nil)
	rec := httptest.NewRecorder()
	handler.Suggestions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if sys.suggestTerm != "inv" {
		t.Errorf("expected term inv, got %q", sys.suggestTerm)
	}

	var body struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Suggestions) != 2 || body.Suggestions[0] != "invoice" {
		t.Errorf("unexpected suggestions %v", body.Suggestions)
	}
}

func TestSuggestionsRequiresQuery(t *testing.T) {
	sys := &fakeSystem{}
	handler := newTestHandler(sys)

	req := httptest.NewRequest(http.MethodGet, "/api/search/suggestions", nil)
	rec := httptest.NewRecorder()
	handler.Suggestions(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if sys.suggestTerm != "" {
		t.Error("missing query must not hit the index")
	}
}

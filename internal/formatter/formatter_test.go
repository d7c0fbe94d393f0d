package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// #region fallback-tests

func TestFallback(t *testing.T) {
	f := Fallback{}
	tests := []struct {
		name     string
		query    string
		snippets []string
		want     string
	}{
		{"query-only", "bread", nil, "bread"},
		{"with-context", "bread", []string{"three", "wheat"}, "bread (Context: three wheat)"},
		{"first-three-snippets", "q", []string{"a", "b", "c", "d"}, "q (Context: a b c)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Format(context.Background(), tt.query, tt.snippets); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrim(t *testing.T) {
	long := strings.Repeat("word ", 60)
	got := Trim(long, 150)
	if len([]rune(got)) > 150 {
		t.Errorf("trimmed length %d exceeds cap", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis, got %q", got)
	}
	if strings.HasSuffix(strings.TrimSuffix(got, "..."), " ") {
		t.Error("expected trailing space removed before ellipsis")
	}
	if Trim("  short  ", 150) != "short" {
		t.Error("expected short text only stripped")
	}
	if Trim("abcdef", 0) != "abcdef" {
		t.Error("expected no cap when max is 0")
	}
}

// #endregion fallback-tests

// #region enricher-tests

type fakeSnippets struct {
	docs []string
	err  error
	last string
}

func (f *fakeSnippets) Snippets(_ context.Context, query string) ([]string, error) {
	f.last = query
	return f.docs, f.err
}

func TestEnrich_NoRetrieval(t *testing.T) {
	e := NewEnricher(nil, nil, "{recipe}")
	got := e.Enrich(context.Background(), "Bread recipe: {recipe}", "bread")
	if got != "Bread recipe: [recipe not available]" {
		t.Errorf("unexpected %q", got)
	}
}

func TestEnrich_WithRetrieval(t *testing.T) {
	s := &fakeSnippets{docs: []string{"three wheat in a row"}}
	e := NewEnricher(Fallback{}, s, "{recipe}")
	got := e.Enrich(context.Background(), "Recipe: {recipe}", "bread")
	if got != "Recipe: bread (Context: three wheat in a row)" {
		t.Errorf("unexpected %q", got)
	}
	if s.last != "bread" {
		t.Errorf("expected query bread, got %q", s.last)
	}
}

func TestEnrich_RetrievalError(t *testing.T) {
	e := NewEnricher(Fallback{}, &fakeSnippets{err: errors.New("down")}, "{recipe}")
	if got := e.Enrich(context.Background(), "R: {recipe}", "torch"); got != "R: torch" {
		t.Errorf("unexpected %q", got)
	}
}

// #endregion enricher-tests

// #region llm-tests

func TestNewLLM_RequiresKey(t *testing.T) {
	if _, err := NewLLM(LLMConfig{}); !errors.Is(err, errMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestLLM_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing auth header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"  Put three wheat in a row.  "}}]}`))
	}))
	defer srv.Close()

	c, err := NewLLM(LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	out := c.Format(context.Background(), "bread", []string{"doc"})
	if out != "Put three wheat in a row." {
		t.Errorf("unexpected %q", out)
	}
	if got.Model != "m" || len(got.Messages) != 2 || !strings.Contains(got.Messages[1].Content, "doc") {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestLLM_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusInternalServerError) }},
		{"api-error", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"error":{"message":"quota"}}`)) }},
		{"no-choices", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"choices":[]}`)) }},
		{"empty", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"choices":[{"message":{"content":" "}}]}`)) }},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`not json`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c, _ := NewLLM(LLMConfig{APIKey: "k", BaseURL: srv.URL})
			if got := c.Format(context.Background(), "bread", []string{"wheat"}); got != "bread (Context: wheat)" {
				t.Errorf("unexpected %q", got)
			}
		})
	}
}

// #endregion llm-tests

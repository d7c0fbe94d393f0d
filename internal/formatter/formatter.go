package formatter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the soft cap on a formatted message, in characters.
const DefaultMaxLength = 150

// NoRecipe replaces the placeholder when no knowledge source is configured.
const NoRecipe = "[recipe not available]"

// #region interfaces

// Formatter turns a query and optional grounding snippets into a short message.
// Format never fails: implementations fall back to Fallback on any internal error.
type Formatter interface {
	Format(ctx context.Context, query string, snippets []string) string
}

// Snippeter returns grounding snippets for a query.
type Snippeter interface {
	Snippets(ctx context.Context, query string) ([]string, error)
}

// #endregion interfaces

// #region fallback

// Fallback is the deterministic formatter: the query, then up to three snippets as context.
type Fallback struct {
	MaxLength int
}

func (f Fallback) Format(_ context.Context, query string, snippets []string) string {
	max := f.MaxLength
	if max == 0 {
		max = DefaultMaxLength
	}
	if len(snippets) == 0 {
		return Trim(query, max)
	}
	if len(snippets) > 3 {
		snippets = snippets[:3]
	}
	return Trim(fmt.Sprintf("%s (Context: %s)", query, strings.Join(snippets, " ")), max)
}

// Trim cuts text to max characters, ending in "..." when shortened.
func Trim(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	keep := max - 3
	if keep < 0 {
		keep = 0
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:keep]), " \t\n") + "..."
}

// #endregion fallback

// #region enricher

// Enricher resolves placeholder candidates before dispatch.
type Enricher struct {
	formatter   Formatter
	snippets    Snippeter // nil when retrieval is disabled
	placeholder string
}

// NewEnricher creates an enricher. A nil snippeter disables retrieval.
func NewEnricher(f Formatter, s Snippeter, placeholder string) *Enricher {
	if f == nil {
		f = Fallback{}
	}
	return &Enricher{formatter: f, snippets: s, placeholder: placeholder}
}

// Enrich replaces the placeholder in text with formatted content for query.
func (e *Enricher) Enrich(ctx context.Context, text, query string) string {
	if e.snippets == nil {
		return strings.ReplaceAll(text, e.placeholder, NoRecipe)
	}
	docs, err := e.snippets.Snippets(ctx, query)
	if err != nil {
		docs = nil
	}
	return strings.ReplaceAll(text, e.placeholder, e.formatter.Format(ctx, query, docs))
}

// #endregion enricher

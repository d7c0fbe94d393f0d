package tips

import "time"

// #region candidate

// RecipePlaceholder marks bank text that must be resolved through the formatter before dispatch.
const RecipePlaceholder = "{recipe}"

// Kind tags whether a candidate can be sent as-is.
type Kind int

const (
	KindPlain Kind = iota
	KindNeedsEnrichment
)

func (k Kind) String() string {
	if k == KindNeedsEnrichment {
		return "needs_enrichment"
	}
	return "plain"
}

// Candidate is one possible message for a label. Immutable once loaded.
type Candidate struct {
	Text         string  `json:"text"`
	SpoilerLevel int     `json:"spoiler_level"`
	Priority     float64 `json:"priority"`
	Kind         Kind    `json:"-"`
	Query        string  `json:"enrich_query,omitempty"` // set when Kind is KindNeedsEnrichment
}

// Table maps a label to its candidates in bank order.
type Table map[string][]Candidate

// #endregion candidate

// #region info

// Info describes the table currently served by a Store.
type Info struct {
	Version    string    `json:"version"`
	Source     string    `json:"source"`
	Labels     int       `json:"labels"`
	Candidates int       `json:"candidates"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// #endregion info

// #region provider-config

// ProviderConfig controls where the tip bank comes from.
type ProviderConfig struct {
	URL             string        // http(s) URL or local file path; empty disables remote fetch
	CachePath       string        // written after each successful remote fetch
	BundledPath     string        // optional override for the embedded default bank
	FetchTimeout    time.Duration // bound on one remote fetch
	RefreshInterval time.Duration // how often the refresher reloads
}

// DefaultProviderConfig returns the defaults used when no tip bank is configured.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		CachePath:       "data/tips_cache.json",
		FetchTimeout:    10 * time.Second,
		RefreshInterval: time.Hour,
	}
}

// #endregion provider-config

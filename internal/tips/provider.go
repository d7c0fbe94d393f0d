package tips

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed tips_default.json
var bundledBank []byte

// #region parse

type bankDoc struct {
	Version string                     `json:"version"`
	Labels  map[string]json.RawMessage `json:"labels"`
}

// Parse decodes a tip bank document. Labels whose value is not a list are skipped, as are
// entries with empty text, non-positive priority, or negative spoiler level.
func Parse(data []byte) (Table, string, error) {
	var doc bankDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("parse tip bank: %w", err)
	}
	t := make(Table, len(doc.Labels))
	for label, raw := range doc.Labels {
		var entries []Candidate
		if err := json.Unmarshal(raw, &entries); err != nil {
			continue
		}
		for _, c := range entries {
			c.Text = strings.TrimSpace(c.Text)
			if c.Text == "" || c.Priority <= 0 || c.SpoilerLevel < 0 {
				continue
			}
			t[label] = append(t[label], classify(label, c))
		}
	}
	return t, doc.Version, nil
}

// classify tags placeholder text for enrichment. The label is the default query.
func classify(label string, c Candidate) Candidate {
	if strings.Contains(c.Text, RecipePlaceholder) {
		c.Kind = KindNeedsEnrichment
		if c.Query == "" {
			c.Query = label
		}
		return c
	}
	c.Kind = KindPlain
	c.Query = ""
	return c
}

// Stub is the minimal table used when no bank can be loaded.
func Stub() Table {
	return Table{
		"low_health": {{Text: "Your health is low—eat food or find shelter.", Priority: 10}},
		"low_food":   {{Text: "You're hungry—hunt animals or harvest crops.", Priority: 9}},
		"exploring":  {{Text: "Exploring? Mark your base coordinates.", Priority: 5}},
	}
}

// #endregion parse

// #region provider

// Provider resolves the tip bank: local path, remote URL, cache, bundled default, stub.
type Provider struct {
	cfg       ProviderConfig
	client    *http.Client
	lastFetch time.Time
	now       func() time.Time
}

// NewProvider creates a provider. Zero config fields take DefaultProviderConfig values.
func NewProvider(cfg ProviderConfig) *Provider {
	def := DefaultProviderConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		now:    time.Now,
	}
}

func (p *Provider) isRemote() bool {
	return strings.HasPrefix(p.cfg.URL, "http://") || strings.HasPrefix(p.cfg.URL, "https://")
}

// Load walks the source chain and always returns a usable table with its version and source.
func (p *Provider) Load(ctx context.Context) (Table, string, string) {
	if p.cfg.URL != "" && !p.isRemote() {
		t, v, err := loadFile(p.cfg.URL)
		if err == nil {
			log.Printf("[TIPS] loaded %d labels from local path %s", len(t), p.cfg.URL)
			return t, v, "local"
		}
		log.Printf("[TIPS] local bank unavailable: %v", err)
	}

	due := p.now().Sub(p.lastFetch) >= p.cfg.RefreshInterval
	if p.isRemote() && due {
		t, v, err := p.fetch(ctx)
		if err == nil {
			p.lastFetch = p.now()
			log.Printf("[TIPS] fetched %d labels from %s", len(t), p.cfg.URL)
			return t, v, "remote"
		}
		log.Printf("[TIPS] fetch failed: %v", err)
	}

	if p.cfg.CachePath != "" {
		if t, v, err := loadFile(p.cfg.CachePath); err == nil {
			log.Printf("[TIPS] loaded %d labels from cache", len(t))
			return t, v, "cache"
		}
	}

	if p.cfg.BundledPath != "" {
		if t, v, err := loadFile(p.cfg.BundledPath); err == nil {
			log.Printf("[TIPS] loaded %d labels from %s", len(t), p.cfg.BundledPath)
			return t, v, "bundled"
		}
	} else if t, v, err := Parse(bundledBank); err == nil && len(t) > 0 {
		log.Printf("[TIPS] loaded %d labels from bundled default", len(t))
		return t, v, "bundled"
	}

	log.Printf("[TIPS] no tip bank available, using stub")
	return Stub(), "stub", "stub"
}

// Reload forces a remote fetch on the next Load.
func (p *Provider) Reload(ctx context.Context) (Table, string, string) {
	p.lastFetch = time.Time{}
	return p.Load(ctx)
}

func (p *Provider) fetch(ctx context.Context) (Table, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", p.cfg.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("get %s: status %d", p.cfg.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	t, v, err := Parse(body)
	if err != nil {
		return nil, "", err
	}
	p.saveCache(body)
	return t, v, nil
}

func (p *Provider) saveCache(body []byte) {
	if p.cfg.CachePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(p.cfg.CachePath), 0o755); err != nil {
		log.Printf("[TIPS] cache dir: %v", err)
		return
	}
	if err := os.WriteFile(p.cfg.CachePath, body, 0o644); err != nil {
		log.Printf("[TIPS] write cache: %v", err)
	}
}

func loadFile(path string) (Table, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return Parse(data)
}

// #endregion provider

// #region refresher

// Refresh loads the bank and installs it into the store.
func (p *Provider) Refresh(ctx context.Context, store *Store) Info {
	t, version, source := p.Reload(ctx)
	store.Replace(t, version, source)
	return store.Info()
}

// Run reloads the bank every RefreshInterval until ctx is cancelled.
func (p *Provider) Run(ctx context.Context, store *Store) error {
	ticker := time.NewTicker(p.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			info := p.Refresh(ctx, store)
			log.Printf("[TIPS] refreshed: %d labels, %d candidates (%s)", info.Labels, info.Candidates, info.Source)
		}
	}
}

// #endregion refresher

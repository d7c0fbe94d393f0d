package retrieval

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed knowledge_default.yaml
var bundledKnowledge []byte

// #region knowledge-base
// KnowledgeBase is an in-memory set of short reference snippets.
type KnowledgeBase struct {
	Version string
	entries []EvidenceRecord
	tokens  [][]string
}

// ParseKnowledge decodes a YAML knowledge base.
func ParseKnowledge(data []byte) (*KnowledgeBase, error) {
	var doc knowledgeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	kb := &KnowledgeBase{Version: doc.Version}
	for _, e := range doc.Entries {
		e.Text = strings.TrimSpace(e.Text)
		kb.entries = append(kb.entries, e)
		kb.tokens = append(kb.tokens, tokenize(e.Text+" "+strings.Join(e.Tags, " ")))
	}
	return kb, nil
}

// LoadKnowledge reads a knowledge base file. An empty path loads the bundled default.
func LoadKnowledge(path string) (*KnowledgeBase, error) {
	if path == "" {
		return ParseKnowledge(bundledKnowledge)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseKnowledge(b)
}

// Len is the number of entries.
func (kb *KnowledgeBase) Len() int { return len(kb.entries) }

// #endregion knowledge-base

// #region retriever
// Retriever runs gated keyword retrieval over a knowledge base.
type Retriever struct {
	kb     *KnowledgeBase
	config RetrievalConfig
}

// NewRetriever creates a Retriever over kb with the given config.
func NewRetriever(kb *KnowledgeBase, config RetrievalConfig) *Retriever {
	return &Retriever{kb: kb, config: config}
}

// #endregion retriever

// #region retrieve
// Retrieve runs the 3-gate retrieval pipeline:
//  1. Gate 1 (Query): skip retrieval if the query has no usable keywords
//  2. Gate 2 (Overlap): keep entries sharing at least MinShared keywords, best first
//  3. Gate 3 (Consistency): validate results (non-empty, reasonable length, no dupes)
func (r *Retriever) Retrieve(ctx context.Context, query string) (GateResult, error) {
	result := GateResult{}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Gate 1: query keywords
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		result.Reason = "gate1: query has no keywords"
		return result, nil
	}
	result.Gate1Passed = true

	// Gate 2: keyword overlap
	var gate2Results []EvidenceRecord
	for i, e := range r.kb.entries {
		shared := sharedKeywords(qTokens, r.kb.tokens[i])
		if shared < r.config.MinShared || shared == 0 {
			continue
		}
		e.Score = float32(shared) / float32(len(qTokens))
		gate2Results = append(gate2Results, e)
	}
	sort.SliceStable(gate2Results, func(i, j int) bool {
		return gate2Results[i].Score > gate2Results[j].Score
	})
	result.Gate2Count = len(gate2Results)

	if result.Gate2Count == 0 {
		result.Reason = "gate2: no entries share keywords with query"
		return result, nil
	}

	// Gate 3: consistency check
	gate3Results := r.consistencyCheck(gate2Results)
	if r.config.TopK > 0 && len(gate3Results) > r.config.TopK {
		gate3Results = gate3Results[:r.config.TopK]
	}
	result.Gate3Count = len(gate3Results)
	result.Retrieved = gate3Results

	if result.Gate3Count == 0 {
		result.Reason = "gate3: all results failed consistency check"
	} else {
		result.Reason = fmt.Sprintf("retrieved %d evidence items (gate2=%d, gate3=%d)",
			result.Gate3Count, result.Gate2Count, result.Gate3Count)
	}

	return result, nil
}

// Snippets returns the texts of the retrieved entries for query.
func (r *Retriever) Snippets(ctx context.Context, query string) ([]string, error) {
	res, err := r.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(res.Retrieved))
	for i, e := range res.Retrieved {
		out[i] = e.Text
	}
	return out, nil
}

// #endregion retrieve

// #region consistency-check
// consistencyCheck validates retrieved evidence against basic constraints:
//   - Non-empty text
//   - Text within MaxEvidenceLen
//   - No duplicate IDs
func (r *Retriever) consistencyCheck(results []EvidenceRecord) []EvidenceRecord {
	seen := make(map[string]bool)
	var valid []EvidenceRecord

	for _, rec := range results {
		if rec.Text == "" {
			continue
		}
		if r.config.MaxEvidenceLen > 0 && len(rec.Text) > r.config.MaxEvidenceLen {
			continue
		}
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		valid = append(valid, rec)
	}

	return valid
}

// #endregion consistency-check

package retrieval

import (
	"strings"
	"unicode"
)

// #region tokens

// fillers never count as a keyword match. Game nouns are deliberately absent so that
// short queries such as "stone" or "bed" still reach the overlap gate.
var fillers = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an the and or but if so as at by for from in into of on to with about over up out
		is are was were be been being do does did have has had can could will would should may might
		it its this that these those what which who how when where why
		i me my you your we us our they them their he him his she her
		any some more most one two three four six eight
		need needs gives give make makes tell`) {
		fillers[w] = struct{}{}
	}
}

// tokenize returns the distinct keywords of text, lowercased, in first-seen order.
// Game identifiers like crafting_table contribute the whole id and each part.
// Plurals fold to their singular so "torches" matches "torch".
func tokenize(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(w string) {
		if _, skip := fillers[w]; skip {
			return
		}
		if w = singular(w); len(w) < 2 {
			return
		}
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	ids := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	for _, id := range ids {
		parts := strings.FieldsFunc(id, func(r rune) bool { return r == '_' })
		if len(parts) > 1 {
			add(strings.Join(parts, "_"))
		}
		for _, p := range parts {
			add(p)
		}
	}
	return out
}

func singular(w string) string {
	switch {
	case len(w) > 4 && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes")):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// sharedKeywords counts the tokens of b that also appear in a.
func sharedKeywords(a, b []string) int {
	in := make(map[string]struct{}, len(a))
	for _, t := range a {
		in[t] = struct{}{}
	}
	n := 0
	for _, t := range b {
		if _, ok := in[t]; ok {
			n++
		}
	}
	return n
}

// #endregion tokens

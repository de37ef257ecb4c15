// Package search provides a small, deterministic, concurrency-safe in-memory
// index over short keyed documents. It backs the local product catalog used
// when no shopping provider key is configured.
//
//   - No logging in the library; callers decide what to log
//   - Functional options for stop words, result caps and a minimum score
//   - Unicode case folding (golang.org/x/text/cases) and light stemming, so
//     "Headphones" matches "headphone"
//   - Immutable after construction and safe for concurrent use
//   - Stable order for ties (insertion order)
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Doc is one searchable entry.
type Doc struct {
	ID   string
	Text string
}

// Result is a ranked document id with its similarity score.
type Result struct {
	ID    string
	Score float64
}

// Index ranks documents for a query.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
	minScore  float64
}

func defaultConfig() config {
	return config{stopwords: defaultStopwords()}
}

// WithStopwords replaces the default stop-word list. An empty list disables
// stop-word removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) == 0 {
			m = nil
		}
		c.stopwords = m
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithMinScore drops results scoring below s.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s >= 0 && s <= 1 {
			c.minScore = s
		}
	}
}

type doc struct {
	id       string
	tokens   map[string]struct{}
	tLen     int
	lenRunes int
}

type index struct {
	cfg  config
	docs []doc
}

// New builds an Index over docs. Entries with no id or no indexable tokens
// are skipped.
func New(docs []Doc, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return buildIndex(docs, cfg)
}

func buildIndex(in []Doc, cfg config) *index {
	docs := make([]doc, 0, len(in))
	for _, d := range in {
		if strings.TrimSpace(d.ID) == "" {
			continue
		}
		t := strings.TrimSpace(normalizeWhitespace(d.Text))
		toks := tokenize(t, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{id: d.ID, tokens: toks, tLen: len(toks), lenRunes: utf8.RuneCountInString(t)})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching documents. Ties are broken by shorter
// text, then by id.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		id       string
		score    float64
		lenRunes int
	}

	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.tLen - over)
		if union <= 0 {
			continue
		}
		score := float64(over) / union
		if score <= 0 || score < i.cfg.minScore {
			continue
		}
		buf = append(buf, scored{id: d.id, score: score, lenRunes: d.lenRunes})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].id < buf[b].id
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = Result{ID: buf[i].id, Score: buf[i].score}
	}
	return out
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func fold(s string) string { return cases.Fold().String(s) }

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[stem(w)] = struct{}{}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// stem drops a plural "s" from words longer than three runes, keeping "ss".
func stem(w string) string {
	if utf8.RuneCountInString(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "the", "for", "with", "of", "to", "in", "on", "or",
		"i", "me", "my", "want", "need", "looking", "find", "show", "some", "best", "good",
		"under", "over", "about", "buy", "please",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

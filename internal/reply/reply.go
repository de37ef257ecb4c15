// Package reply turns the raw text returned by the language model into a
// validated dialogue turn.
//
// Parse never fails. It tries, in order, a direct JSON decode of the trimmed
// text (after stripping a Markdown code fence), a decode of the first
// balanced {...} span found in the text, and finally treats the whole text as
// a plain reply. The span scan is a best-effort recovery step for replies that
// wrap the object in prose; it is not a general JSON parser.
package reply

import (
	"encoding/json"
	"strings"

	"github.com/tbourn/shopping-assistant/internal/domain"
)

// EmptyNotice replaces a reply whose content is missing or blank.
const EmptyNotice = "Sorry, I received an empty response. Could you try asking again?"

// Tier records which parsing step produced a Turn.
type Tier int

const (
	TierDirect Tier = iota + 1
	TierExtracted
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierExtracted:
		return "extracted"
	case TierFallback:
		return "fallback"
	}
	return "unknown"
}

// Turn is a normalized assistant reply.
//
// Options is non-nil exactly when Type is TypeOptions. Query holds the search
// query for TypeProducts and is empty otherwise.
type Turn struct {
	Type    domain.MessageType `json:"type"`
	Content string             `json:"content"`
	Stage   domain.Stage       `json:"stage"`
	Options []string           `json:"options,omitempty"`
	Query   string             `json:"products,omitempty"`
	Tier    Tier               `json:"-"`
}

// wire mirrors the structured reply with loosely-typed fields so that a
// schema violation in one field does not reject the whole object.
type wire struct {
	Type     json.RawMessage `json:"type"`
	Content  json.RawMessage `json:"content"`
	Stage    json.RawMessage `json:"stage"`
	Options  json.RawMessage `json:"options"`
	Products json.RawMessage `json:"products"`
}

// Parse interprets raw model output. It is deterministic and does not retain
// any state between calls.
func Parse(raw string) Turn {
	text := stripFence(strings.TrimSpace(raw))

	if w, ok := decode(text); ok {
		return normalize(w, TierDirect)
	}
	if span, ok := firstObject(text); ok {
		if w, ok := decode(span); ok {
			return normalize(w, TierExtracted)
		}
	}
	return normalize(wire{
		Type:    json.RawMessage(`"text"`),
		Content: mustQuote(strings.TrimSpace(raw)),
	}, TierFallback)
}

func decode(s string) (wire, bool) {
	var w wire
	if !strings.HasPrefix(s, "{") {
		return w, false
	}
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return w, false
	}
	return w, true
}

func normalize(w wire, tier Tier) Turn {
	t := Turn{Tier: tier}

	t.Type = domain.MessageType(asString(w.Type))
	if !t.Type.Valid() {
		t.Type = domain.TypeText
	}

	t.Stage = domain.Stage(asString(w.Stage))
	if !t.Stage.Valid() {
		t.Stage = domain.StageNew
		if t.Type == domain.TypeProducts {
			t.Stage = domain.StageProducts
		}
	}

	t.Content = strings.TrimSpace(asString(w.Content))
	if t.Content == "" {
		t.Content = EmptyNotice
	}

	switch t.Type {
	case domain.TypeOptions:
		t.Options = asStrings(w.Options)
	case domain.TypeProducts:
		t.Query = productQuery(w.Products)
	}
	return t
}

// productQuery accepts either a string or an array of strings and yields a
// single query. For arrays the first non-blank element wins.
func productQuery(raw json.RawMessage) string {
	if s := strings.TrimSpace(asString(raw)); s != "" {
		return s
	}
	if items := asStrings(raw); len(items) > 0 {
		return items[0]
	}
	return ""
}

func asString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// asStrings decodes a JSON array keeping only non-blank string elements. Any
// other shape yields an empty, non-nil slice.
func asStrings(raw json.RawMessage) []string {
	out := []string{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, it := range items {
		if s := strings.TrimSpace(asString(it)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mustQuote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// firstObject returns the first top-level balanced {...} span of s. Braces
// inside JSON string literals are ignored.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

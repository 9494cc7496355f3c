package prefill

import (
	"encoding/json"
	"errors"
	"strings"
)

var errMalformed = errors.New("malformed array literal")

// parseList materializes a multiple-choice answer. It accepts native lists,
// JSON arrays, {a,"b c"} or [a,"b"] literals and comma separated text. ok is
// false when v is not a list in any of these forms.
func parseList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case string:
		return parseListText(l)
	}
	return nil, false
}

func parseListText(raw string) ([]any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if strings.HasPrefix(s, "[") {
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out, true
		}
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		closing := "}"
		if s[0] == '[' {
			closing = "]"
		}
		if len(s) < 2 || !strings.HasSuffix(s, closing) {
			return nil, false
		}
		items, err := splitLiteral(s[1 : len(s)-1])
		if err != nil {
			return nil, false
		}
		return items, true
	}
	var out []any
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// splitLiteral splits the body of an array literal on commas. Elements may be
// double-quoted, with backslash escaping the next character; an unquoted NULL
// element is dropped.
func splitLiteral(body string) ([]any, error) {
	out := []any{}
	if strings.TrimSpace(body) == "" {
		return out, nil
	}
	var (
		cur     strings.Builder
		quoted  bool // current element was quoted
		inQuote bool
	)
	flush := func() {
		el := cur.String()
		if !quoted {
			el = strings.TrimSpace(el)
			if el == "" || strings.EqualFold(el, "null") {
				cur.Reset()
				return
			}
		}
		out = append(out, el)
		cur.Reset()
		quoted = false
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\':
			if i+1 >= len(body) {
				return nil, errMalformed
			}
			i++
			cur.WriteByte(body[i])
		case c == '"':
			if !inQuote && strings.TrimSpace(cur.String()) != "" {
				return nil, errMalformed
			}
			if !inQuote {
				cur.Reset()
			}
			inQuote = !inQuote
			quoted = true
		case c == ',' && !inQuote:
			flush()
		case inQuote || !quoted:
			cur.WriteByte(c)
		case c != ' ' && c != '\t':
			// text after a closing quote
			return nil, errMalformed
		}
	}
	if inQuote {
		return nil, errMalformed
	}
	flush()
	return out, nil
}

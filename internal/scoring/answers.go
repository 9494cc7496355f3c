package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/pkg/nullable"
)

// RawAnswers maps question ids to stored answer values: numbers, option
// codes, boolean-ish strings, lists, date strings, or nil for "not answered".
// The engine never mutates it.
type RawAnswers map[string]any

// reader reads typed values out of RawAnswers and remembers which required
// inputs were absent.
type reader struct {
	a       RawAnswers
	missing map[string]bool
}

func newReader(a RawAnswers) *reader {
	return &reader{a: a, missing: map[string]bool{}}
}

func (r *reader) missingInputs() []string {
	out := make([]string, 0, len(r.missing))
	for k := range r.missing {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// num reads a required numeric input.
func (r *reader) num(id string) nullable.Float {
	v := r.optional(id)
	if !v.Valid() {
		r.missing[id] = true
	}
	return v
}

// optional reads a numeric input without recording it as missing.
func (r *reader) optional(id string) nullable.Float {
	return toFloat(r.a[id])
}

// flag reads a required yes/no input as 1 or 0.
func (r *reader) flag(id string) nullable.Float {
	v := r.optionalFlag(id)
	if !v.Valid() {
		r.missing[id] = true
	}
	return v
}

func (r *reader) optionalFlag(id string) nullable.Float {
	switch v := r.a[id].(type) {
	case nil:
		return nullable.Null()
	case bool:
		if v {
			return nullable.Of(1)
		}
		return nullable.Of(0)
	case string:
		b, ok := instrument.ParseBoolish(v)
		if !ok {
			return nullable.Null()
		}
		if b {
			return nullable.Of(1)
		}
		return nullable.Of(0)
	default:
		f := toFloat(v)
		if !f.Valid() {
			return f
		}
		if f.Or(0) != 0 {
			return nullable.Of(1)
		}
		return nullable.Of(0)
	}
}

// str reads a textual input; empty strings count as absent.
func (r *reader) str(id string) (string, bool) {
	switch v := r.a[id].(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	default:
		return fmt.Sprint(v), true
	}
}

// present reports whether any of ids carries a value.
func (r *reader) present(ids ...string) bool {
	for _, id := range ids {
		if v, ok := r.a[id]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return true
		}
	}
	return false
}

// toFloat reads a numeric answer; booleans count as 1 or 0.
func toFloat(v any) nullable.Float {
	if b, ok := v.(bool); ok {
		if b {
			return nullable.Of(1)
		}
		return nullable.Of(0)
	}
	f, ok := instrument.ParseNumber(v)
	if !ok {
		return nullable.Null()
	}
	return nullable.Of(f)
}

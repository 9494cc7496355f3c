package prefill

import (
	"strings"

	"github.com/ehr/clinscore/internal/instrument"
)

// resolveChoice maps a stored value onto one of q's option codes. Resolution
// order: exact code, numeric value, boolean spelling, then code or label
// ignoring case. An unresolved value is returned unchanged.
func resolveChoice(q instrument.Question, v any) any {
	if v == nil {
		return nil
	}
	for _, opt := range q.Options {
		if sameCode(opt.Code, v) {
			return opt.Code
		}
	}
	if f, ok := instrument.ParseNumber(v); ok {
		for _, opt := range q.Options {
			if n, isNum := opt.NumericCode(); isNum && n == f {
				return opt.Code
			}
		}
	}
	s := strings.TrimSpace(instrument.AnswerText(v))
	if b, ok := instrument.ParseBoolish(s); ok && isBinary(q) {
		for _, opt := range q.Options {
			code := opt.CodeString()
			if (b && instrument.IsYesCode(code)) || (!b && instrument.IsNoCode(code)) {
				return opt.Code
			}
		}
	}
	for _, opt := range q.Options {
		if strings.EqualFold(s, opt.CodeString()) || strings.EqualFold(s, strings.TrimSpace(opt.Label)) {
			return opt.Code
		}
	}
	return v
}

func sameCode(code, v any) bool {
	switch c := code.(type) {
	case string:
		s, ok := v.(string)
		return ok && s == c
	case int:
		n, ok := v.(int)
		return ok && n == c
	}
	return false
}

// isBinary reports whether q is a yes/no question: it has a yes option and a
// no option and any other option is non-numeric ("unknown", "n/a").
func isBinary(q instrument.Question) bool {
	var hasYes, hasNo bool
	for _, opt := range q.Options {
		code := opt.CodeString()
		switch {
		case instrument.IsYesCode(code):
			hasYes = true
		case instrument.IsNoCode(code):
			hasNo = true
		default:
			if _, isNum := opt.NumericCode(); isNum {
				return false
			}
		}
	}
	return hasYes && hasNo
}

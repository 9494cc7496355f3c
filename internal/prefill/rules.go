package prefill

import (
	"github.com/ehr/clinscore/internal/instrument"
)

// Rule folds deprecated fields of an older record layout into the current
// ones. Rules only fill empty fields; Apply reports whether it changed rec.
type Rule interface {
	Name() string
	Apply(def *instrument.Definition, rec Record) bool
}

// FieldMap copies a deprecated field into its consolidated replacement.
type FieldMap struct {
	To   string
	From string
}

// CategoryRule applies when the deprecated Source flag says yes: Gate gets
// the yes code, Status gets Category and every mapped sub-field is copied.
// Nothing happens when Gate already holds a value other than yes.
type CategoryRule struct {
	RuleName string
	Source   string
	Gate     string
	Status   string
	Category string
	Fields   []FieldMap
}

func (r CategoryRule) Name() string { return r.RuleName }

func (r CategoryRule) Apply(def *instrument.Definition, rec Record) bool {
	if !saysYes(rec[r.Source]) {
		return false
	}
	if !isEmpty(rec[r.Gate]) && !saysYes(rec[r.Gate]) {
		return false
	}
	if !isEmpty(rec[r.Status]) && rec[r.Status] != r.Category {
		return false
	}
	changed := false
	if isEmpty(rec[r.Gate]) {
		rec[r.Gate] = answerCode(def, r.Gate, true)
		changed = true
	}
	if isEmpty(rec[r.Status]) {
		rec[r.Status] = r.Category
		changed = true
	}
	for _, f := range r.Fields {
		if isEmpty(rec[f.To]) && !isEmpty(rec[f.From]) {
			rec[f.To] = rec[f.From]
			changed = true
		}
	}
	return changed
}

// NegativeRule sets Gate to the no code when it is empty and every deprecated
// source explicitly says no.
type NegativeRule struct {
	RuleName string
	Gate     string
	Sources  []string
}

func (r NegativeRule) Name() string { return r.RuleName }

func (r NegativeRule) Apply(def *instrument.Definition, rec Record) bool {
	if !isEmpty(rec[r.Gate]) || len(r.Sources) == 0 {
		return false
	}
	for _, s := range r.Sources {
		if !saysNo(rec[s]) {
			return false
		}
	}
	rec[r.Gate] = answerCode(def, r.Gate, false)
	return true
}

var lifestyleRules = []Rule{
	CategoryRule{
		RuleName: "tobacco_current", Source: "tobacco_current",
		Gate: "tobacco", Status: "tobacco_status", Category: "current",
		Fields: []FieldMap{
			{To: "tobacco_product", From: "tobacco_current_product"},
			{To: "tobacco_onset_age", From: "tobacco_current_onset_age"},
		},
	},
	CategoryRule{
		RuleName: "tobacco_former", Source: "tobacco_former",
		Gate: "tobacco", Status: "tobacco_status", Category: "former",
		Fields: []FieldMap{
			{To: "tobacco_product", From: "tobacco_former_product"},
			{To: "tobacco_onset_age", From: "tobacco_former_onset_age"},
			{To: "tobacco_quit_years", From: "tobacco_former_quit_years"},
		},
	},
	NegativeRule{RuleName: "tobacco_never", Gate: "tobacco", Sources: []string{"tobacco_current", "tobacco_former"}},
	CategoryRule{
		RuleName: "alcohol_current", Source: "alcohol_current",
		Gate: "alcohol", Status: "alcohol_status", Category: "current",
		Fields: []FieldMap{
			{To: "alcohol_type", From: "alcohol_current_type"},
			{To: "alcohol_onset_age", From: "alcohol_current_onset_age"},
		},
	},
	CategoryRule{
		RuleName: "alcohol_former", Source: "alcohol_former",
		Gate: "alcohol", Status: "alcohol_status", Category: "former",
		Fields: []FieldMap{
			{To: "alcohol_type", From: "alcohol_former_type"},
			{To: "alcohol_onset_age", From: "alcohol_former_onset_age"},
			{To: "alcohol_quit_years", From: "alcohol_former_quit_years"},
		},
	},
	NegativeRule{RuleName: "alcohol_never", Gate: "alcohol", Sources: []string{"alcohol_current", "alcohol_former"}},
}

var rulesByInstrument = map[instrument.Code][]Rule{
	instrument.CodeLifestyle: lifestyleRules,
}

// Rules returns the ordered backfill rules of an instrument.
func Rules(code instrument.Code) []Rule {
	return append([]Rule(nil), rulesByInstrument[code]...)
}

func saysYes(v any) bool {
	if v == nil {
		return false
	}
	b, ok := instrument.ParseBoolish(instrument.AnswerText(v))
	return ok && b
}

func saysNo(v any) bool {
	if v == nil {
		return false
	}
	b, ok := instrument.ParseBoolish(instrument.AnswerText(v))
	return ok && !b
}

// answerCode returns the option code the question uses for yes or no, or the
// plain spelling when the question is not a yes/no choice.
func answerCode(def *instrument.Definition, id string, yes bool) any {
	if q, ok := def.Question(id); ok {
		for _, opt := range q.Options {
			code := opt.CodeString()
			if (yes && instrument.IsYesCode(code)) || (!yes && instrument.IsNoCode(code)) {
				return opt.Code
			}
		}
	}
	if yes {
		return "oui"
	}
	return "non"
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "{}" || t == "[]"
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

// Package prefill reconciles stored answer records with the current
// instrument definitions so forms and scorers see canonical values.
package prefill

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/ehr/clinscore/internal/instrument"
)

// Record is a form-ready answer record.
type Record map[string]any

// Normalize rewrites stored into the canonical vocabulary of def. The input is
// left untouched and keys unknown to def pass through as they are. Running
// Normalize on its own output changes nothing.
func Normalize(def *instrument.Definition, stored map[string]any) Record {
	out := make(Record, len(stored))
	for k, v := range stored {
		q, ok := def.Question(k)
		if !ok {
			out[k] = v
			continue
		}
		out[k] = normalizeValue(q, v)
	}
	for _, rule := range rulesByInstrument[def.Code] {
		rule.Apply(def, out)
	}
	return out
}

func normalizeValue(q instrument.Question, v any) any {
	if v == nil {
		return nil
	}
	switch q.Type {
	case instrument.SingleChoice:
		return resolveChoice(q, v)
	case instrument.MultipleChoice:
		items, ok := parseList(v)
		if !ok {
			return v
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			out = append(out, resolveChoice(q, it))
		}
		return out
	case instrument.Number, instrument.Scale:
		if s, ok := v.(string); ok {
			if f, isNum := instrument.ParseNumber(s); isNum {
				return f
			}
		}
		return v
	case instrument.Date:
		return truncateDate(v)
	}
	return v
}

// truncateDate keeps the date part of an ISO datetime.
func truncateDate(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.DateOnly)
	case string:
		s := strings.TrimSpace(t)
		if len(s) > len(time.DateOnly) {
			if _, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)]); err == nil {
				return s[:len(time.DateOnly)]
			}
		}
	}
	return v
}

// Diff renders a unified diff between a stored record and its normalized
// form, one key per line.
func Diff(stored map[string]any, normalized Record) (string, error) {
	a, err := recordLines(stored)
	if err != nil {
		return "", err
	}
	b, err := recordLines(normalized)
	if err != nil {
		return "", err
	}
	diff := difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "stored",
		ToFile:   "normalized",
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff records: %w", err)
	}
	return text, nil
}

// recordLines renders each entry as a single flow-style YAML line so value
// types stay visible ("1" versus 1).
func recordLines(rec map[string]any) ([]string, error) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		node := &yaml.Node{}
		if err := node.Encode(rec[k]); err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		setFlow(node)
		data, err := yaml.Marshal(node)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		lines = append(lines, fmt.Sprintf("%s: %s\n", k, strings.TrimSpace(string(data))))
	}
	return lines, nil
}

func setFlow(n *yaml.Node) {
	switch {
	case n.Kind == yaml.SequenceNode || n.Kind == yaml.MappingNode:
		n.Style = yaml.FlowStyle
	case n.Kind == yaml.ScalarNode && strings.Contains(n.Value, "\n"):
		n.Style = yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		setFlow(c)
	}
}

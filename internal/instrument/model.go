package instrument

import (
	"fmt"
	"strconv"
	"strings"
)

// Code identifies a clinical instrument. The set is closed: every valid code
// is declared below and registered with the scoring engine.
type Code string

const (
	CodeQIDS         Code = "qids_sr16"
	CodeMDQ          Code = "mdq"
	CodeSTOPBang     Code = "stop_bang"
	CodePSQI         Code = "psqi"
	CodeEpworth      Code = "epworth"
	CodePHQ9         Code = "phq9"
	CodeGAD7         Code = "gad7"
	CodeISI          Code = "isi"
	CodeLifestyle    Code = "lifestyle"
	CodeClinicalExam Code = "clinical_exam"
	CodeBiology      Code = "biology"
	CodeECG          Code = "ecg"
	CodeDigitSpan    Code = "digit_span"
	CodeSpatialSpan  Code = "spatial_span"
	CodeCoding       Code = "coding"
	CodeDigitSymbol  Code = "digit_symbol"
)

var knownCodes = []Code{
	CodeQIDS, CodeMDQ, CodeSTOPBang, CodePSQI, CodeEpworth, CodePHQ9, CodeGAD7,
	CodeISI, CodeLifestyle, CodeClinicalExam, CodeBiology, CodeECG,
	CodeDigitSpan, CodeSpatialSpan, CodeCoding, CodeDigitSymbol,
}

// Codes returns every known instrument code in declaration order.
func Codes() []Code {
	out := make([]Code, len(knownCodes))
	copy(out, knownCodes)
	return out
}

// ParseCode validates s against the closed set of instrument codes.
func ParseCode(s string) (Code, error) {
	c := Code(strings.TrimSpace(s))
	for _, k := range knownCodes {
		if k == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown instrument code %q", s)
}

// AnswerType is the shape of the answer a question collects.
type AnswerType string

const (
	SingleChoice   AnswerType = "single_choice"
	MultipleChoice AnswerType = "multiple_choice"
	Number         AnswerType = "number"
	Scale          AnswerType = "scale"
	Date           AnswerType = "date"
	Time           AnswerType = "time"
	Text           AnswerType = "text"
)

func (t AnswerType) valid() bool {
	switch t {
	case SingleChoice, MultipleChoice, Number, Scale, Date, Time, Text:
		return true
	}
	return false
}

// IsChoice reports whether the question carries an option vocabulary.
func (t AnswerType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice
}

// Option is one entry of a choice vocabulary. Code is an int or a string,
// exactly as declared in the definition file.
type Option struct {
	Code  any    `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// CodeString renders the option code for textual comparison.
func (o Option) CodeString() string {
	switch v := o.Code.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// NumericCode returns the option code as a number when it is one.
func (o Option) NumericCode() (float64, bool) {
	switch v := o.Code.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// Question is a single scorable or informational item.
type Question struct {
	ID         string     `yaml:"id" json:"id"`
	Label      string     `yaml:"label" json:"label,omitempty"`
	Type       AnswerType `yaml:"type" json:"type"`
	Options    []Option   `yaml:"options" json:"options,omitempty"`
	Deprecated bool       `yaml:"deprecated" json:"deprecated,omitempty"`
}

// Definition is the immutable description of an instrument.
type Definition struct {
	Code      Code       `yaml:"code" json:"code"`
	Title     string     `yaml:"title" json:"title"`
	Version   string     `yaml:"version" json:"version"`
	Questions []Question `yaml:"questions" json:"questions"`

	index map[string]int
}

// Question looks up a question by id.
func (d *Definition) Question(id string) (Question, bool) {
	i, ok := d.index[id]
	if !ok {
		return Question{}, false
	}
	return d.Questions[i], true
}

func (d *Definition) buildIndex() {
	d.index = make(map[string]int, len(d.Questions))
	for i, q := range d.Questions {
		d.index[q.ID] = i
	}
}

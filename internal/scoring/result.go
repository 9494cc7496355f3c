package scoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/pkg/nullable"
)

var (
	ErrUnknownInstrument    = errors.New("unknown instrument")
	ErrMissingRequiredInput = errors.New("missing required input")
)

// UnknownInstrumentError is returned when no scorer is registered for a code.
type UnknownInstrumentError struct {
	Code string
}

func (e *UnknownInstrumentError) Error() string {
	return fmt.Sprintf("unknown instrument %q", e.Code)
}

func (e *UnknownInstrumentError) Is(target error) bool { return target == ErrUnknownInstrument }

// MissingRequiredInputError is returned by ScoreStrict when an instrument
// could not produce a total.
type MissingRequiredInputError struct {
	Instrument instrument.Code
	Fields     []string
}

func (e *MissingRequiredInputError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: total could not be computed", e.Instrument)
	}
	return fmt.Sprintf("%s: missing required input: %s", e.Instrument, strings.Join(e.Fields, ", "))
}

func (e *MissingRequiredInputError) Is(target error) bool { return target == ErrMissingRequiredInput }

// NormReference records which table produced a standardized score.
type NormReference struct {
	Table   string `json:"table"`
	Version string `json:"version"`
	AgeBand string `json:"age_band"`
}

// Result is the scored and interpreted outcome of one instrument submission.
type Result struct {
	Instrument        instrument.Code     `json:"instrument"`
	Total             *float64            `json:"total"`
	Components        map[string]*float64 `json:"components"`
	Displays          map[string]*string  `json:"displays,omitempty"`
	StandardizedScore *int                `json:"standardized_score"`
	ZScore            *float64            `json:"z_score"`
	Norm              *NormReference      `json:"norm,omitempty"`
	Severity          string              `json:"severity"`
	Interpretation    string              `json:"interpretation"`
	ClinicalAlerts    []string            `json:"clinical_alerts"`
	MissingInputs     []string            `json:"missing_inputs,omitempty"`
}

// Component returns a named sub-score.
func (r Result) Component(name string) (float64, bool) {
	p, ok := r.Components[name]
	if !ok || p == nil {
		return 0, false
	}
	return *p, true
}

// PersistablePatch is the only shape handed to persistence. It is built field
// by field so nothing from the submitted answers can slip through.
type PersistablePatch struct {
	Instrument        instrument.Code     `json:"instrument"`
	Total             *float64            `json:"total"`
	Components        map[string]*float64 `json:"components"`
	Displays          map[string]*string  `json:"displays,omitempty"`
	StandardizedScore *int                `json:"standardized_score"`
	ZScore            *float64            `json:"z_score"`
	NormTable         string              `json:"norm_table,omitempty"`
	NormVersion       string              `json:"norm_version,omitempty"`
	Severity          string              `json:"severity"`
	Interpretation    string              `json:"interpretation"`
	ClinicalAlerts    []string            `json:"clinical_alerts"`
}

// Patch converts a result into its persistable form.
func (r Result) Patch() PersistablePatch {
	p := PersistablePatch{
		Instrument:        r.Instrument,
		Total:             copyFloat(r.Total),
		Components:        make(map[string]*float64, len(r.Components)),
		StandardizedScore: r.StandardizedScore,
		ZScore:            copyFloat(r.ZScore),
		Severity:          r.Severity,
		Interpretation:    r.Interpretation,
		ClinicalAlerts:    append([]string{}, r.ClinicalAlerts...),
	}
	for k, v := range r.Components {
		p.Components[k] = copyFloat(v)
	}
	if len(r.Displays) > 0 {
		p.Displays = make(map[string]*string, len(r.Displays))
		for k, v := range r.Displays {
			p.Displays[k] = v
		}
	}
	if r.Norm != nil {
		p.NormTable = r.Norm.Table
		p.NormVersion = r.Norm.Version
	}
	return p
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// outcome is what a scorer hands back to the dispatcher.
type outcome struct {
	total      nullable.Float
	components map[string]nullable.Float
	displays   map[string]*string
	alerts     []string
	// verdict carries a categorical result that bypasses the numeric
	// classifier (screening decisions, short-circuits).
	verdict string
	missing []string
}

func newOutcome() outcome {
	return outcome{components: map[string]nullable.Float{}}
}

func (o *outcome) set(name string, v nullable.Float) nullable.Float {
	o.components[name] = v
	return v
}

func (o *outcome) display(name string, s *string) {
	if o.displays == nil {
		o.displays = map[string]*string{}
	}
	o.displays[name] = s
}

func (o *outcome) alert(msg string) {
	o.alerts = append(o.alerts, msg)
}

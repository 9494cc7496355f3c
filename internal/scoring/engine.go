// Package scoring turns raw instrument answers into scored, interpreted
// results. Every scorer is a pure function; the Engine only routes a
// submission to its scorer, the norm tables and the classifier.
package scoring

import (
	"fmt"
	"sort"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/internal/norms"
)

type entry struct {
	score func(*reader, Demographics) outcome
	// scale classifies the total when classify is nil and no norm table
	// applies.
	scale    Scale
	classify func(outcome, Demographics) (string, string)
	// table standardizes the total; spans add z-scores for span lengths.
	table string
	spans []spanNorm
}

func registry() map[instrument.Code]entry {
	return map[instrument.Code]entry{
		instrument.CodeQIDS:         {score: scoreQIDS, scale: qidsScale},
		instrument.CodeMDQ:          {score: scoreMDQ, classify: classifyMDQ},
		instrument.CodeSTOPBang:     {score: scoreStopBang, classify: classifyStopBang},
		instrument.CodePSQI:         {score: scorePSQI, scale: psqiScale},
		instrument.CodeEpworth:      {score: scoreEpworth, scale: epworthScale},
		instrument.CodePHQ9:         {score: scorePHQ9, scale: phq9Scale},
		instrument.CodeGAD7:         {score: scoreGAD7, scale: gad7Scale},
		instrument.CodeISI:          {score: scoreISI, scale: isiScale},
		instrument.CodeLifestyle:    {score: scoreLifestyle, classify: classifyLifestyle},
		instrument.CodeClinicalExam: {score: scoreClinicalExam, scale: bmiScale},
		instrument.CodeBiology:      {score: scoreBiology, classify: classifyBiology},
		instrument.CodeECG:          {score: scoreECG, classify: classifyECG},
		instrument.CodeDigitSpan:    {score: scoreDigitSpan, table: norms.TableWAIS4DigitSpan, spans: digitSpanNorms},
		instrument.CodeSpatialSpan:  {score: scoreSpatialSpan, table: norms.TableMEM3SpatialSpan, spans: spatialSpanNorms},
		instrument.CodeCoding:       {score: rawScorer("coding_raw"), table: norms.TableWAIS4Coding},
		instrument.CodeDigitSymbol:  {score: rawScorer("digit_symbol_raw"), table: norms.TableWAIS3DigitSymbol},
	}
}

// Engine scores submissions. It is immutable and safe for concurrent use.
type Engine struct {
	norms    *norms.Engine
	registry map[instrument.Code]entry
}

func NewEngine(n *norms.Engine) *Engine {
	return &Engine{norms: n, registry: registry()}
}

// Instruments lists the codes the engine can score.
func (e *Engine) Instruments() []instrument.Code {
	out := make([]instrument.Code, 0, len(e.registry))
	for c := range e.registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScoreAndInterpret scores answers for the instrument identified by code.
// Missing answers never cause an error: they leave the affected fields null.
// An unregistered code returns *UnknownInstrumentError.
func (e *Engine) ScoreAndInterpret(code instrument.Code, answers RawAnswers, d Demographics) (Result, error) {
	en, ok := e.registry[code]
	if !ok {
		return Result{}, &UnknownInstrumentError{Code: string(code)}
	}

	r := newReader(answers)
	o := en.score(r, d)

	res := Result{Instrument: code, ClinicalAlerts: []string{}}
	if en.table != "" {
		if raw, ok := o.total.Get(); ok {
			std, err := e.norms.Scaled(en.table, raw, d.AgeYears)
			if err != nil {
				return Result{}, fmt.Errorf("standardize %s: %w", code, err)
			}
			ss, z := std.Scaled, std.Z
			res.StandardizedScore = &ss
			res.ZScore = &z
			res.Norm = e.normReference(en.table, std.Band)
		}
	}
	for _, sn := range en.spans {
		z, err := e.norms.SpanZ(sn.table, o.components[sn.component], d.AgeYears, d.EducationLevel)
		if err != nil {
			return Result{}, fmt.Errorf("span norms %s: %w", code, err)
		}
		o.set(sn.component+"_z", z)
	}

	switch {
	case en.classify != nil:
		res.Severity, res.Interpretation = en.classify(o, d)
	case en.table != "":
		if res.StandardizedScore != nil {
			res.Severity, res.Interpretation = classify(scaledScale, float64(*res.StandardizedScore), true)
		} else {
			res.Severity, res.Interpretation = classify(scaledScale, 0, false)
		}
	default:
		v, ok := o.total.Get()
		res.Severity, res.Interpretation = classify(en.scale, v, ok)
	}

	res.Total = o.total.Ptr()
	res.Components = make(map[string]*float64, len(o.components))
	for k, v := range o.components {
		res.Components[k] = v.Ptr()
	}
	res.Displays = o.displays
	res.ClinicalAlerts = append(res.ClinicalAlerts, o.alerts...)
	res.MissingInputs = r.missingInputs()
	return res, nil
}

// ScoreStrict is ScoreAndInterpret for callers that need every required input.
// It returns *MissingRequiredInputError when the total is null because of
// missing answers; categorical outcomes such as "managed" pass.
func (e *Engine) ScoreStrict(code instrument.Code, answers RawAnswers, d Demographics) (Result, error) {
	res, err := e.ScoreAndInterpret(code, answers, d)
	if err != nil {
		return res, err
	}
	if res.Total == nil && len(res.MissingInputs) > 0 {
		return res, &MissingRequiredInputError{Instrument: code, Fields: res.MissingInputs}
	}
	return res, nil
}

func (e *Engine) normReference(table, band string) *NormReference {
	ref := &NormReference{Table: table, AgeBand: band}
	if t, ok := e.norms.Store().ScoreTable(table); ok {
		ref.Version = t.Version
	}
	return ref
}

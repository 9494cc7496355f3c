package assessment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/internal/scoring"
)

// Assessment is a stored scoring result. Only the persistable patch is kept;
// the submitted answers live in AnswerRecord.
type Assessment struct {
	ID        uuid.UUID  `json:"id"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	scoring.PersistablePatch
	AssessedAt time.Time `json:"assessed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnswerRecord holds the most recent answers of a patient for one instrument.
type AnswerRecord struct {
	PatientID         uuid.UUID       `json:"patient_id"`
	Instrument        instrument.Code `json:"instrument"`
	Answers           map[string]any  `json:"answers"`
	DefinitionVersion string          `json:"definition_version,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SubjectInfo describes the patient at assessment time. Age comes from
// BirthDate when set, otherwise from AgeYears.
type SubjectInfo struct {
	BirthDate      *Date  `json:"birth_date,omitempty"`
	AgeYears       *int   `json:"age_years,omitempty"`
	Gender         string `json:"gender,omitempty"`
	EducationLevel *int   `json:"education_level,omitempty"`
}

// Submission is one request to score an instrument.
type Submission struct {
	PatientID  *uuid.UUID         `json:"patient_id,omitempty"`
	Instrument instrument.Code    `json:"-"`
	Answers    scoring.RawAnswers `json:"answers"`
	Subject    SubjectInfo        `json:"subject"`
	AssessedAt *time.Time         `json:"assessed_at,omitempty"`
	Strict     bool               `json:"strict,omitempty"`
}

// Scored is what Score hands back: the full result and, when it was stored,
// the persisted assessment.
type Scored struct {
	Result scoring.Result `json:"result"`
	Stored *Assessment    `json:"stored,omitempty"`
}

// PrefillResult is a normalized record ready for a form.
type PrefillResult struct {
	Instrument        instrument.Code `json:"instrument"`
	DefinitionVersion string          `json:"definition_version"`
	Record            map[string]any  `json:"record"`
	Diff              string          `json:"diff,omitempty"`
}

// Date is a calendar date in JSON ("2001-04-30").
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

// demographics resolves the subject for the assessment date.
func (s SubjectInfo) demographics(at time.Time) (scoring.Demographics, error) {
	var d scoring.Demographics
	switch {
	case s.BirthDate != nil:
		if s.BirthDate.After(at) {
			return d, fmt.Errorf("birth_date is after the assessment date")
		}
		d.AgeYears = scoring.AgeAt(s.BirthDate.Time, at)
	case s.AgeYears != nil:
		if *s.AgeYears < 0 || *s.AgeYears > 130 {
			return d, fmt.Errorf("age_years out of range: %d", *s.AgeYears)
		}
		d.AgeYears = *s.AgeYears
	}
	g, err := scoring.ParseGender(s.Gender)
	if err != nil {
		return d, err
	}
	d.Gender = g
	// an out-of-range level is passed through; the span z-score is then null
	if s.EducationLevel != nil {
		lvl := *s.EducationLevel
		d.EducationLevel = &lvl
	}
	return d, nil
}

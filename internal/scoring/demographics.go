package scoring

import (
	"fmt"
	"strings"
	"time"
)

// Gender of the subject as recorded on the patient file.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// ParseGender accepts M/F and the common spellings of both.
func ParseGender(s string) (*Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "m", "male", "h", "homme", "masculin":
		g := GenderMale
		return &g, nil
	case "f", "female", "femme", "feminin", "féminin":
		g := GenderFemale
		return &g, nil
	}
	return nil, fmt.Errorf("invalid gender %q", s)
}

// Demographics are resolved by the caller for the assessment date.
type Demographics struct {
	AgeYears       int     `json:"age_years"`
	Gender         *Gender `json:"gender,omitempty"`
	EducationLevel *int    `json:"education_level,omitempty"`
}

func (d Demographics) isMale() (bool, bool) {
	if d.Gender == nil {
		return false, false
	}
	return *d.Gender == GenderMale, true
}

// AgeAt returns the age in whole years at ref for someone born on birth. One
// year is taken off when ref falls before the birthday in ref's year.
func AgeAt(birth, ref time.Time) int {
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	return age
}

package scoring

import (
	"fmt"
	"math"
)

// Band is a half-open interval [Low, High) of a score with its label.
type Band struct {
	Low      float64
	High     float64
	Severity string
	Text     string
}

// Scale is an ordered list of bands, least severe first. Consecutive bands
// share a boundary so every score from the first Low upward matches exactly
// one band.
type Scale []Band

// Classify returns the band that contains v.
func (s Scale) Classify(v float64) (Band, bool) {
	for _, b := range s {
		if v >= b.Low && v < b.High {
			return b, true
		}
	}
	return Band{}, false
}

// Validate checks the scale is contiguous and unbounded above.
func (s Scale) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("empty scale")
	}
	for i, b := range s {
		if b.High <= b.Low {
			return fmt.Errorf("band %q: empty interval", b.Severity)
		}
		if i > 0 && s[i-1].High != b.Low {
			return fmt.Errorf("band %q: gap or overlap after %q", b.Severity, s[i-1].Severity)
		}
	}
	if !math.IsInf(s[len(s)-1].High, 1) {
		return fmt.Errorf("last band %q must be unbounded", s[len(s)-1].Severity)
	}
	return nil
}

var inf = math.Inf(1)

var (
	qidsScale = Scale{
		{0, 6, "none", "No depressive symptoms."},
		{6, 11, "mild", "Mild depressive symptoms."},
		{11, 16, "moderate", "Moderate depressive symptoms."},
		{16, 21, "severe", "Severe depressive symptoms."},
		{21, inf, "very_severe", "Very severe depressive symptoms."},
	}
	phq9Scale = Scale{
		{0, 5, "minimal", "Minimal depressive symptoms."},
		{5, 10, "mild", "Mild depressive symptoms."},
		{10, 15, "moderate", "Moderate depressive symptoms."},
		{15, 20, "moderately_severe", "Moderately severe depressive symptoms."},
		{20, inf, "severe", "Severe depressive symptoms."},
	}
	gad7Scale = Scale{
		{0, 5, "minimal", "Minimal anxiety."},
		{5, 10, "mild", "Mild anxiety."},
		{10, 15, "moderate", "Moderate anxiety."},
		{15, inf, "severe", "Severe anxiety."},
	}
	isiScale = Scale{
		{0, 8, "none", "No clinically significant insomnia."},
		{8, 15, "subthreshold", "Subthreshold insomnia."},
		{15, 22, "moderate", "Clinical insomnia of moderate severity."},
		{22, inf, "severe", "Severe clinical insomnia."},
	}
	epworthScale = Scale{
		{0, 8, "normal", "Normal daytime sleepiness."},
		{8, 11, "mild", "Mild excessive daytime sleepiness."},
		{11, 16, "moderate", "Moderate excessive daytime sleepiness."},
		{16, inf, "severe", "Severe excessive daytime sleepiness."},
	}
	stopBangScale = Scale{
		{0, 3, "low", "Low risk of obstructive sleep apnoea."},
		{3, 5, "intermediate", "Intermediate risk of obstructive sleep apnoea."},
		{5, inf, "high", "High risk of obstructive sleep apnoea."},
	}
	psqiScale = Scale{
		{0, 6, "good_sleeper", "Good sleeper."},
		{6, inf, "poor_sleeper", "Poor sleeper."},
	}
	bmiScale = Scale{
		{0, 18.5, "underweight", "Underweight."},
		{18.5, 25, "normal", "Normal weight."},
		{25, 30, "overweight", "Overweight."},
		{30, 35, "obesity_1", "Obesity class I."},
		{35, 40, "obesity_2", "Obesity class II."},
		{40, inf, "obesity_3", "Obesity class III."},
	}
	lipidScale = Scale{
		{0, 5, "normal", "Total cholesterol to HDL ratio within target."},
		{5, inf, "elevated", "Elevated total cholesterol to HDL ratio."},
	}
	packYearsScale = Scale{
		{0, 10, "light", "Tobacco exposure below 10 pack-years."},
		{10, 20, "moderate", "Tobacco exposure between 10 and 20 pack-years."},
		{20, inf, "heavy", "Tobacco exposure of 20 pack-years or more."},
	}
	scaledScale = Scale{
		{1, 4, "extremely_low", "Extremely low performance for age."},
		{4, 6, "borderline", "Borderline performance for age."},
		{6, 8, "low_average", "Low average performance for age."},
		{8, 13, "average", "Average performance for age."},
		{13, 15, "high_average", "High average performance for age."},
		{15, 17, "superior", "Superior performance for age."},
		{17, inf, "very_superior", "Very superior performance for age."},
	}
)

// classify labels a nullable value with s. A null value is reported as not
// computed.
func classify(s Scale, v float64, ok bool) (string, string) {
	if !ok {
		return notComputed, notComputedText
	}
	b, found := s.Classify(v)
	if !found {
		return notComputed, notComputedText
	}
	return b.Severity, b.Text
}

const (
	notComputed     = "not_computed"
	notComputedText = "Score not computed: required answers are missing."
)

package scoring

import (
	"fmt"

	"github.com/ehr/clinscore/pkg/nullable"
)

const alcoholUnitsWeekLimit = 14

// smokingYears is the time between onset and today, or between onset and
// quitting for a former smoker.
func smokingYears(r *reader, d Demographics, status string) nullable.Float {
	onset := r.num("tobacco_onset_age")
	end := nullable.Of(float64(d.AgeYears))
	if status == "former" {
		end = end.Sub(r.num("tobacco_quit_years"))
	}
	years := end.Sub(onset)
	if y, ok := years.Get(); ok && y < 0 {
		return nullable.Null()
	}
	return years
}

func scoreLifestyle(r *reader, d Demographics) outcome {
	o := newOutcome()
	smoker := r.flag("tobacco")
	switch s, ok := smoker.Get(); {
	case !ok:
	case s == 0:
		o.verdict = "non_smoker"
		o.total = o.set("pack_years", nullable.Of(0))
	default:
		status, _ := r.str("tobacco_status")
		if status != "current" && status != "former" {
			r.missing["tobacco_status"] = true
			break
		}
		years := o.set("smoking_years", smokingYears(r, d, status))
		perDay := r.num("tobacco_per_day")
		o.total = o.set("pack_years", perDay.Div(nullable.Of(20)).Mul(years).Round(1))
	}

	units := o.set("alcohol_units_week", r.optional("alcohol_units_week"))
	if u, ok := units.Get(); ok && u > alcoholUnitsWeekLimit {
		o.alert(fmt.Sprintf("Alcohol intake of %.0f units per week exceeds the %d unit guideline.", u, alcoholUnitsWeekLimit))
	}
	return o
}

func classifyLifestyle(o outcome, _ Demographics) (string, string) {
	if o.verdict == "non_smoker" {
		return "non_smoker", "No tobacco use reported."
	}
	v, ok := o.total.Get()
	return classify(packYearsScale, v, ok)
}

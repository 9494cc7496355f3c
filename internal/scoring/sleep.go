package scoring

import (
	"strconv"
	"strings"

	"github.com/ehr/clinscore/pkg/nullable"
)

// ordinalBand maps a two-item sum onto 0..3: 0, 1-2, 3-4, 5+.
func ordinalBand(sum float64) float64 {
	switch {
	case sum <= 0:
		return 0
	case sum < 3:
		return 1
	case sum < 5:
		return 2
	default:
		return 3
	}
}

func latencyScore(minutes float64) float64 {
	switch {
	case minutes <= 15:
		return 0
	case minutes <= 30:
		return 1
	case minutes <= 60:
		return 2
	default:
		return 3
	}
}

func durationScore(hours float64) float64 {
	switch {
	case hours >= 7:
		return 0
	case hours >= 6:
		return 1
	case hours >= 5:
		return 2
	default:
		return 3
	}
}

func efficiencyScore(pct float64) float64 {
	switch {
	case pct >= 85:
		return 0
	case pct >= 75:
		return 1
	case pct >= 65:
		return 2
	default:
		return 3
	}
}

func disturbanceScore(sum float64) float64 {
	switch {
	case sum <= 0:
		return 0
	case sum < 10:
		return 1
	case sum < 19:
		return 2
	default:
		return 3
	}
}

// clockHours reads a time of day ("22:30", "22:30:00", "22h30", or decimal
// hours) as hours since midnight.
func clockHours(r *reader, id string) nullable.Float {
	v, ok := r.a[id]
	if !ok || v == nil {
		r.missing[id] = true
		return nullable.Null()
	}
	s, isStr := v.(string)
	if !isStr {
		h := toFloat(v)
		if !h.Valid() {
			r.missing[id] = true
		}
		return h
	}
	h, ok := parseClock(s)
	if !ok {
		r.missing[id] = true
		return nullable.Null()
	}
	return nullable.Of(h)
}

func parseClock(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if !strings.ContainsAny(s, ":h") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 || f >= 24 {
			return 0, false
		}
		return f, true
	}
	parts := strings.FieldsFunc(s, func(c rune) bool { return c == ':' || c == 'h' })
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		vals[i] = n
	}
	if vals[0] > 23 || vals[1] > 59 || vals[2] > 59 {
		return 0, false
	}
	return float64(vals[0]) + float64(vals[1])/60 + float64(vals[2])/3600, true
}

// timeInBed is the interval from bedtime to wake time; a wake time earlier
// than bedtime falls on the next day.
func timeInBed(bed, wake nullable.Float) nullable.Float {
	b, okB := bed.Get()
	w, okW := wake.Get()
	if !okB || !okW {
		return nullable.Null()
	}
	if w < b {
		w += 24
	}
	return nullable.Of(w - b)
}

func scorePSQI(r *reader, _ Demographics) outcome {
	o := newOutcome()
	c1 := o.set("c1_quality", r.num("sleep_quality"))

	latency := r.num("sleep_latency_min").Map(latencyScore)
	c2 := o.set("c2_latency", latency.Add(r.num("q5a")).Map(ordinalBand))

	hours := r.num("sleep_hours")
	c3 := o.set("c3_duration", hours.Map(durationScore))

	tib := o.set("time_in_bed", timeInBed(clockHours(r, "bedtime"), clockHours(r, "wake_time")))
	eff := hours.Div(tib).Mul(nullable.Of(100))
	o.set("sleep_efficiency", eff.Round(1))
	c4 := o.set("c4_efficiency", eff.Map(efficiencyScore))

	// q5j ("other reason") is optional on the form and counts 0 when absent.
	other := nullable.Of(r.optional("q5j").Or(0))
	dist := sumItems(r, "q5b", "q5c", "q5d", "q5e", "q5f", "q5g", "q5h", "q5i").Add(other)
	c5 := o.set("c5_disturbance", dist.Map(disturbanceScore))

	c6 := o.set("c6_medication", r.num("sleep_medication"))
	c7 := o.set("c7_daytime", r.num("staying_awake").Add(r.num("enthusiasm")).Map(ordinalBand))

	o.total = nullable.Sum(c1, c2, c3, c4, c5, c6, c7)
	return o
}

var stopBangItems = []string{
	"snoring", "tired", "observed_apnea", "pressure",
	"bmi_over_35", "age_over_50", "neck_over_40", "male",
}

func boolScore(b bool) nullable.Float {
	if b {
		return nullable.Of(1)
	}
	return nullable.Of(0)
}

func scoreStopBang(r *reader, d Demographics) outcome {
	o := newOutcome()
	diagnosed, _ := r.optionalFlag("osa_diagnosed").Get()
	cpap, _ := r.optionalFlag("cpap_in_use").Get()
	if diagnosed == 1 && cpap == 1 {
		o.verdict = "managed"
		return o
	}

	items := make([]nullable.Float, 0, len(stopBangItems))
	for _, id := range stopBangItems {
		v := r.optionalFlag(id)
		if !v.Valid() {
			v = stopBangFallback(r, d, id)
		}
		if !v.Valid() {
			r.missing[id] = true
		}
		items = append(items, o.set(id, v))
	}
	o.total = nullable.Sum(items...)
	return o
}

// stopBangFallback answers the objective items from other data on file.
func stopBangFallback(r *reader, d Demographics, id string) nullable.Float {
	switch id {
	case "bmi_over_35":
		if bmi, ok := r.optional("bmi").Get(); ok {
			return boolScore(bmi > 35)
		}
	case "age_over_50":
		if d.AgeYears > 0 {
			return boolScore(d.AgeYears > 50)
		}
	case "male":
		if male, ok := d.isMale(); ok {
			return boolScore(male)
		}
	}
	return nullable.Null()
}

func classifyStopBang(o outcome, _ Demographics) (string, string) {
	if o.verdict == "managed" {
		return "managed", "Known obstructive sleep apnoea treated with CPAP: risk score not applicable."
	}
	v, ok := o.total.Get()
	return classify(stopBangScale, v, ok)
}

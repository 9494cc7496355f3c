package scoring

import (
	"fmt"

	"github.com/ehr/clinscore/pkg/nullable"
)

// maxGroup scores mutually exclusive alternatives: the highest answered item
// counts, unanswered items count 0, and a group with nothing answered is null.
func maxGroup(r *reader, ids ...string) nullable.Float {
	vals := make([]nullable.Float, len(ids))
	for i, id := range ids {
		vals[i] = r.optional(id)
	}
	v := nullable.MaxMissingZero(vals...)
	if !v.Valid() {
		for _, id := range ids {
			r.missing[id] = true
		}
	}
	return v
}

// sumItems adds required items; any missing item makes the sum null.
func sumItems(r *reader, ids ...string) nullable.Float {
	vals := make([]nullable.Float, len(ids))
	for i, id := range ids {
		vals[i] = r.num(id)
	}
	return nullable.Sum(vals...)
}

func itemIDs(prefix string, from, to int) []string {
	ids := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, fmt.Sprintf("%s%d", prefix, i))
	}
	return ids
}

var qidsDomains = []struct {
	name  string
	items []string
}{
	{"sleep", []string{"sleep_onset", "sleep_maintenance", "sleep_early", "sleep_hypersomnia"}},
	{"mood", []string{"mood_sad"}},
	{"appetite_weight", []string{"appetite_decreased", "appetite_increased", "weight_decreased", "weight_increased"}},
	{"concentration", []string{"concentration"}},
	{"self_view", []string{"self_view"}},
	{"suicidal_ideation", []string{"suicidal_ideation"}},
	{"interest", []string{"interest"}},
	{"energy", []string{"energy"}},
	{"psychomotor", []string{"psychomotor_slowed", "psychomotor_agitated"}},
}

func scoreQIDS(r *reader, _ Demographics) outcome {
	o := newOutcome()
	domains := make([]nullable.Float, 0, len(qidsDomains))
	for _, d := range qidsDomains {
		var v nullable.Float
		if len(d.items) == 1 {
			v = r.num(d.items[0])
		} else {
			v = maxGroup(r, d.items...)
		}
		domains = append(domains, o.set(d.name, v))
	}
	o.total = nullable.Sum(domains...)
	if si, ok := o.components["suicidal_ideation"].Get(); ok && si >= 1 {
		o.alert(fmt.Sprintf("Suicidal ideation reported (item score %.0f): assess risk without delay.", si))
	}
	return o
}

// tristate is a three-valued truth used by screening rules.
type tristate int8

const (
	unknown tristate = iota
	yes
	no
)

func truth(b, known bool) tristate {
	switch {
	case !known:
		return unknown
	case b:
		return yes
	default:
		return no
	}
}

const (
	mdqItems        = 13
	mdqCut          = 7
	mdqImpairmentAt = 2
)

func scoreMDQ(r *reader, _ Demographics) outcome {
	o := newOutcome()
	ids := itemIDs("q1_", 1, mdqItems)
	var yesCount, missing int
	vals := make([]nullable.Float, len(ids))
	for i, id := range ids {
		vals[i] = r.flag(id)
		switch v, ok := vals[i].Get(); {
		case !ok:
			missing++
		case v == 1:
			yesCount++
		}
	}
	sum := o.set("symptoms", nullable.Sum(vals...))
	o.set("symptoms_yes", nullable.Of(float64(yesCount)))
	co := o.set("co_occurrence", r.flag("q2"))
	impairment := o.set("impairment", r.num("q3"))
	o.set("family_history", r.optionalFlag("q4"))
	o.set("prior_diagnosis", r.optionalFlag("q5"))
	o.total = sum

	// The symptom condition is already decided when the yes answers reach the
	// cut, or when the unanswered items could not bring them there.
	var symptoms tristate
	switch {
	case yesCount >= mdqCut:
		symptoms = yes
	case yesCount+missing < mdqCut:
		symptoms = no
	default:
		symptoms = unknown
	}
	coV, coOK := co.Get()
	impOK, impKnown := impairment.AtLeast(mdqImpairmentAt)
	conds := []tristate{symptoms, truth(coV == 1, coOK), truth(impOK, impKnown)}

	o.verdict = "positive"
	for _, c := range conds {
		if c == no {
			o.verdict = "negative"
			return o
		}
		if c == unknown {
			o.verdict = "indeterminate"
		}
	}
	return o
}

func classifyMDQ(o outcome, _ Demographics) (string, string) {
	switch o.verdict {
	case "positive":
		return "positive", "Positive screen for bipolar spectrum disorder: refer for diagnostic assessment."
	case "negative":
		return "negative", "Negative screen for bipolar spectrum disorder."
	}
	return "indeterminate", "Screen indeterminate: required answers are missing."
}

func scorePHQ9(r *reader, _ Demographics) outcome {
	o := newOutcome()
	items := itemIDs("p", 1, 9)
	for _, id := range items {
		o.set(id, r.num(id))
	}
	o.total = sumItems(r, items...)
	if v, ok := o.components["p9"].Get(); ok && v >= 1 {
		o.alert("Thoughts of death or self-harm reported: assess suicide risk without delay.")
	}
	// p10 rates functional difficulty and is reported, not summed.
	o.set("difficulty", r.optional("p10"))
	return o
}

func scoreGAD7(r *reader, _ Demographics) outcome {
	o := newOutcome()
	o.total = sumItems(r, itemIDs("g", 1, 7)...)
	return o
}

func scoreISI(r *reader, _ Demographics) outcome {
	o := newOutcome()
	o.total = sumItems(r, itemIDs("i", 1, 7)...)
	return o
}

var epworthContexts = [...]string{
	"Dozing occurs only in monotonous situations.",
	"Dozing occurs after meals.",
	"Dozing occurs while driving.",
	"Dozing occurs during work or conversation.",
}

func scoreEpworth(r *reader, _ Demographics) outcome {
	o := newOutcome()
	o.total = sumItems(r, itemIDs("e", 1, 8)...)
	if c, ok := r.optional("context").Get(); ok && c >= 0 && int(c) < len(epworthContexts) && c == float64(int(c)) {
		s := epworthContexts[int(c)]
		o.display("context", &s)
		if int(c) >= 2 {
			o.alert(s + " Review fitness to drive.")
		}
	}
	return o
}

package scoring

import (
	"fmt"
	"strconv"

	"github.com/ehr/clinscore/pkg/nullable"
)

// BMI returns weight / height² rounded to one decimal, with height in metres.
func BMI(weightKg, heightM nullable.Float) nullable.Float {
	return weightKg.Div(heightM.Mul(heightM)).Round(1)
}

// BloodPressure formats a reading as "{systolic}/{diastolic}", or nil when
// either value is missing.
func BloodPressure(systolic, diastolic nullable.Float) *string {
	s, okS := systolic.Get()
	d, okD := diastolic.Get()
	if !okS || !okD {
		return nil
	}
	out := strconv.FormatFloat(s, 'f', -1, 64) + "/" + strconv.FormatFloat(d, 'f', -1, 64)
	return &out
}

// LipidRatio returns total cholesterol / HDL rounded to two decimals.
func LipidRatio(total, hdl nullable.Float) nullable.Float {
	if h, ok := hdl.Get(); !ok || h <= 0 {
		return nullable.Null()
	}
	return total.Div(hdl).Round(2)
}

// CorrectedCalcium returns calcium/0.55 + protein/160 rounded to two decimals.
func CorrectedCalcium(calcium, protein nullable.Float) nullable.Float {
	return calcium.Div(nullable.Of(0.55)).Add(protein.Div(nullable.Of(160))).Round(2)
}

// QTcBazett corrects a QT interval for heart rate: QT / √RR, in seconds,
// rounded to three decimals.
func QTcBazett(qt, rr nullable.Float) nullable.Float {
	return qt.Div(rr.Sqrt()).Round(3)
}

const (
	orthostaticSystolicDrop  = 20
	orthostaticDiastolicDrop = 10
)

func scoreClinicalExam(r *reader, _ Demographics) outcome {
	o := newOutcome()
	weight := o.set("weight_kg", r.num("weight_kg"))
	height := o.set("height_cm", r.num("height_cm"))
	o.total = o.set("bmi", BMI(weight, height.Div(nullable.Of(100))))

	lyingSys, lyingDia := r.optional("bp_lying_systolic"), r.optional("bp_lying_diastolic")
	standSys, standDia := r.optional("bp_standing_systolic"), r.optional("bp_standing_diastolic")
	o.display("bp_lying", BloodPressure(lyingSys, lyingDia))
	o.display("bp_standing", BloodPressure(standSys, standDia))
	o.set("heart_rate", r.optional("heart_rate"))

	sysDrop := o.set("systolic_drop", lyingSys.Sub(standSys))
	diaDrop := o.set("diastolic_drop", lyingDia.Sub(standDia))
	sysHit, _ := sysDrop.AtLeast(orthostaticSystolicDrop)
	diaHit, _ := diaDrop.AtLeast(orthostaticDiastolicDrop)
	if sysHit || diaHit {
		o.alert("Orthostatic hypotension: blood pressure falls on standing.")
	}
	high140, _ := lyingSys.AtLeast(140)
	high90, _ := lyingDia.AtLeast(90)
	if high140 || high90 {
		o.alert("Lying blood pressure at or above 140/90 mmHg.")
	}
	return o
}

func scoreBiology(r *reader, _ Demographics) outcome {
	o := newOutcome()
	o.set("lipid_ratio", LipidRatio(r.num("total_cholesterol"), r.num("hdl")))
	o.set("corrected_calcium", CorrectedCalcium(r.num("calcium"), r.num("total_protein")))
	o.set("ldl", r.optional("ldl"))
	o.set("triglycerides", r.optional("triglycerides"))
	return o
}

func classifyBiology(o outcome, _ Demographics) (string, string) {
	v, ok := o.components["lipid_ratio"].Get()
	return classify(lipidScale, v, ok)
}

const (
	qtcMaleCutoff   = 0.450
	qtcFemaleCutoff = 0.470
	qtcMarked       = 0.500
)

func scoreECG(r *reader, _ Demographics) outcome {
	o := newOutcome()
	if performed, ok := r.optionalFlag("ecg_performed").Get(); ok && performed == 0 {
		o.verdict = "not_performed"
		return o
	}
	qt := r.num("qt_s")
	rr := r.optional("rr_s")
	if !rr.Valid() {
		// RR derived from the recorded heart rate.
		rr = nullable.Of(60).Div(r.optional("heart_rate"))
		if !rr.Valid() {
			r.missing["rr_s"] = true
		}
	}
	o.set("qt_s", qt)
	o.set("rr_s", rr.Round(3))
	o.total = o.set("qtc_s", QTcBazett(qt, rr))
	if v, ok := o.total.Get(); ok && v > qtcMarked {
		o.alert(fmt.Sprintf("QTc %.3f s exceeds 0.500 s: risk of ventricular arrhythmia.", v))
	}
	if rhythm, ok := r.str("rhythm"); ok && rhythm == "af" {
		o.alert("Atrial fibrillation recorded.")
	}
	return o
}

func classifyECG(o outcome, d Demographics) (string, string) {
	if o.verdict == "not_performed" {
		return "not_performed", "ECG not performed."
	}
	v, ok := o.total.Get()
	if !ok {
		return notComputed, notComputedText
	}
	cutoff, who := qtcMaleCutoff, "men"
	if male, known := d.isMale(); known && !male {
		cutoff, who = qtcFemaleCutoff, "women"
	}
	ref := fmt.Sprintf("QTc %.3f s (upper limit %.3f s for %s; %.3f s for men, %.3f s for women).",
		v, cutoff, who, qtcMaleCutoff, qtcFemaleCutoff)
	switch {
	case v > qtcMarked:
		return "markedly_prolonged", "Markedly prolonged " + ref
	case v > cutoff:
		return "prolonged", "Prolonged " + ref
	}
	return "normal", "Normal " + ref
}

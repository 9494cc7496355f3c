package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/pkg/nullable"
)

func near(got, want, tol float64) bool { return math.Abs(got-want) <= tol }

func TestBMI(t *testing.T) {
	got, ok := BMI(nullable.Of(85), nullable.Of(1.80)).Get()
	if !ok || !near(got, 26.2, 0.1) {
		t.Fatalf("expected 26.2, got %v", got)
	}
	if BMI(nullable.Of(85), nullable.Null()).Valid() {
		t.Error("null height must give null BMI")
	}
	if BMI(nullable.Of(85), nullable.Of(0)).Valid() {
		t.Error("zero height must give null BMI")
	}
}

func TestBloodPressure(t *testing.T) {
	s := BloodPressure(nullable.Of(128), nullable.Of(82))
	if s == nil || *s != "128/82" {
		t.Fatalf("expected 128/82, got %v", s)
	}
	if BloodPressure(nullable.Of(128), nullable.Null()) != nil {
		t.Error("missing diastolic must give nil")
	}
}

func TestLipidRatio(t *testing.T) {
	got, _ := LipidRatio(nullable.Of(5.2), nullable.Of(1.3)).Get()
	if got != 4 {
		t.Errorf("expected 4, got %v", got)
	}
	got, _ = LipidRatio(nullable.Of(5.0), nullable.Of(1.5)).Get()
	if got != 3.33 {
		t.Errorf("expected 3.33, got %v", got)
	}
	for _, hdl := range []nullable.Float{nullable.Null(), nullable.Of(0), nullable.Of(-1)} {
		if LipidRatio(nullable.Of(5), hdl).Valid() {
			t.Errorf("expected null ratio for HDL %v", hdl)
		}
	}
}

func TestCorrectedCalcium(t *testing.T) {
	got, ok := CorrectedCalcium(nullable.Of(2.35), nullable.Of(72)).Get()
	if !ok || !near(got, 4.72, 0.01) {
		t.Fatalf("expected 4.72, got %v", got)
	}
	if CorrectedCalcium(nullable.Of(2.35), nullable.Null()).Valid() {
		t.Error("missing protein must give null")
	}
}

func TestQTcBazett(t *testing.T) {
	got, ok := QTcBazett(nullable.Of(0.38), nullable.Of(0.85)).Get()
	if !ok || !near(got, 0.412, 0.001) {
		t.Fatalf("expected 0.412, got %v", got)
	}
	if QTcBazett(nullable.Of(0.38), nullable.Of(0)).Valid() {
		t.Error("zero RR must give null")
	}
}

func TestClinicalExam(t *testing.T) {
	e := newTestEngine(t)
	a := RawAnswers{
		"weight_kg": 85, "height_cm": "180",
		"bp_lying_systolic": 130, "bp_lying_diastolic": 80,
		"bp_standing_systolic": 105, "bp_standing_diastolic": 75,
	}
	res := score(t, e, instrument.CodeClinicalExam, a, Demographics{})
	if res.Total == nil || *res.Total != 26.2 {
		t.Fatalf("expected BMI 26.2, got %v", res.Total)
	}
	if res.Severity != "overweight" {
		t.Errorf("expected overweight, got %s", res.Severity)
	}
	if p := res.Displays["bp_lying"]; p == nil || *p != "130/80" {
		t.Errorf("unexpected lying BP %v", p)
	}
	if len(res.ClinicalAlerts) != 1 || !strings.Contains(res.ClinicalAlerts[0], "Orthostatic") {
		t.Errorf("expected orthostatic alert, got %v", res.ClinicalAlerts)
	}

	delete(a, "height_cm")
	res = score(t, e, instrument.CodeClinicalExam, a, Demographics{})
	if res.Total != nil {
		t.Errorf("expected null BMI without height")
	}
}

func TestBiology(t *testing.T) {
	e := newTestEngine(t)
	a := RawAnswers{"total_cholesterol": 6.6, "hdl": 1.2, "calcium": 2.35, "total_protein": 72}
	res := score(t, e, instrument.CodeBiology, a, Demographics{})
	if got := component(t, res, "lipid_ratio"); got != 5.5 {
		t.Errorf("expected ratio 5.5, got %v", got)
	}
	if got := component(t, res, "corrected_calcium"); !near(got, 4.72, 0.01) {
		t.Errorf("expected 4.72, got %v", got)
	}
	if res.Severity != "elevated" {
		t.Errorf("expected elevated, got %s", res.Severity)
	}
}

func TestECG(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		name    string
		answers RawAnswers
		demo    Demographics
		qtc     *float64
		want    string
	}{
		{"male above cutoff", RawAnswers{"ecg_performed": "oui", "qt_s": 0.46, "rr_s": 1}, Demographics{Gender: genderPtr(GenderMale)}, floatPtr(0.46), "prolonged"},
		{"female below cutoff", RawAnswers{"ecg_performed": "oui", "qt_s": 0.46, "rr_s": 1}, Demographics{Gender: genderPtr(GenderFemale)}, floatPtr(0.46), "normal"},
		{"rr from heart rate", RawAnswers{"qt_s": 0.4, "heart_rate": 60}, Demographics{}, floatPtr(0.4), "normal"},
		{"not performed", RawAnswers{"ecg_performed": "non", "qt_s": 0.4, "rr_s": 1}, Demographics{}, nil, "not_performed"},
		{"missing qt", RawAnswers{"ecg_performed": "oui", "rr_s": 1}, Demographics{}, nil, notComputed},
		{"markedly prolonged", RawAnswers{"qt_s": 0.52, "rr_s": 1}, Demographics{}, floatPtr(0.52), "markedly_prolonged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := score(t, e, instrument.CodeECG, tt.answers, tt.demo)
			if deref(res.Total) != deref(tt.qtc) {
				t.Errorf("expected QTc %v, got %v", deref(tt.qtc), deref(res.Total))
			}
			if res.Severity != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res.Severity)
			}
			if tt.qtc != nil && !strings.Contains(res.Interpretation, "0.450 s for men") {
				t.Errorf("interpretation should cite the cutoffs: %q", res.Interpretation)
			}
		})
	}
}

func TestLifestyle(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		name    string
		answers RawAnswers
		total   *float64
		want    string
		alerts  int
	}{
		{"current smoker", RawAnswers{"tobacco": "oui", "tobacco_status": "current", "tobacco_onset_age": 20, "tobacco_per_day": 20}, floatPtr(30), "heavy", 0},
		{"former smoker", RawAnswers{"tobacco": "oui", "tobacco_status": "former", "tobacco_onset_age": 20, "tobacco_quit_years": 10, "tobacco_per_day": 10}, floatPtr(10), "moderate", 0},
		{"non smoker drinking above guideline", RawAnswers{"tobacco": "non", "alcohol": "oui", "alcohol_units_week": 21}, floatPtr(0), "non_smoker", 1},
		{"status unknown", RawAnswers{"tobacco": "oui", "tobacco_onset_age": 20, "tobacco_per_day": 20}, nil, notComputed, 0},
		{"onset after quit", RawAnswers{"tobacco": "oui", "tobacco_status": "former", "tobacco_onset_age": 45, "tobacco_quit_years": 10, "tobacco_per_day": 10}, nil, notComputed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := score(t, e, instrument.CodeLifestyle, tt.answers, Demographics{AgeYears: 50})
			if deref(res.Total) != deref(tt.total) {
				t.Errorf("expected pack-years %v, got %v", deref(tt.total), deref(res.Total))
			}
			if res.Severity != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res.Severity)
			}
			if len(res.ClinicalAlerts) != tt.alerts {
				t.Errorf("expected %d alerts, got %v", tt.alerts, res.ClinicalAlerts)
			}
		})
	}
}

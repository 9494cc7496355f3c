package instrument

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestDefaultCatalog_CoversEveryCode(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}
	for _, code := range Codes() {
		def, err := cat.Get(code)
		if err != nil {
			t.Errorf("missing definition for %s: %v", code, err)
			continue
		}
		if def.Code != code {
			t.Errorf("definition code %q, want %q", def.Code, code)
		}
	}
	if got := len(cat.List()); got != len(Codes()) {
		t.Errorf("expected %d definitions, got %d", len(Codes()), got)
	}
}

func TestDefaultCatalog_OptionCodesKeepDeclaredType(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, _ := cat.Get(CodeQIDS)
	q, ok := def.Question("sleep_onset")
	if !ok {
		t.Fatal("sleep_onset not found")
	}
	if _, isInt := q.Options[2].Code.(int); !isInt {
		t.Errorf("expected int option code, got %T", q.Options[2].Code)
	}

	life, _ := cat.Get(CodeLifestyle)
	q, _ = life.Question("tobacco")
	if q.Options[0].Code != "oui" {
		t.Errorf("expected string code oui, got %v", q.Options[0].Code)
	}
	dep, _ := life.Question("tobacco_former")
	if !dep.Deprecated {
		t.Error("expected tobacco_former to be deprecated")
	}
}

func TestDefaultCatalog_SpanGrid(t *testing.T) {
	cat, _ := DefaultCatalog()
	def, _ := cat.Get(CodeDigitSpan)
	if len(def.Questions) != 48 {
		t.Fatalf("expected 48 trials, got %d", len(def.Questions))
	}
	if _, ok := def.Question("dss_8_t2"); !ok {
		t.Error("expected dss_8_t2")
	}
}

func TestLoad_AggregatesErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": {Data: []byte(`code: nope
title: bad
questions:
  - id: x
    type: single_choice
  - id: x
    type: weird
`)},
		"b.yaml": {Data: []byte("code: [unterminated")},
	}
	_, err := Load(fsys)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	var vErrs ValidationErrors
	if !errors.As(err, &vErrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	msg := err.Error()
	for _, want := range []string{"unknown instrument code", "needs options", "duplicate question id", "invalid type", "yaml"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %s", want, msg)
		}
	}
}

func TestLoad_DuplicateInstrument(t *testing.T) {
	doc := []byte("code: coding\ntitle: c\nquestions:\n  - id: coding_raw\n    type: number\n")
	_, err := Load(fstest.MapFS{"a.yaml": {Data: doc}, "b.yaml": {Data: doc}})
	if err == nil || !strings.Contains(err.Error(), "duplicate instrument") {
		t.Fatalf("expected duplicate instrument error, got %v", err)
	}
}

func TestLoad_Empty(t *testing.T) {
	if _, err := Load(fstest.MapFS{}); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestParseCode(t *testing.T) {
	if c, err := ParseCode(" phq9 "); err != nil || c != CodePHQ9 {
		t.Errorf("expected phq9, got %q (%v)", c, err)
	}
	if _, err := ParseCode("PHQ9"); err == nil {
		t.Error("codes are case-sensitive")
	}
}

func TestOption_CodeString(t *testing.T) {
	if got := (Option{Code: 3}).CodeString(); got != "3" {
		t.Errorf("got %q", got)
	}
	if got := (Option{Code: 1.5}).CodeString(); got != "1.5" {
		t.Errorf("got %q", got)
	}
	if v, ok := (Option{Code: "oui"}).NumericCode(); ok {
		t.Errorf("string code must not be numeric, got %v", v)
	}
}

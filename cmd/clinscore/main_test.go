package main

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ehr/clinscore/internal/scoring"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScoreCmd_JSON(t *testing.T) {
	out, err := runCLI(t, `{"g1":2,"g2":2,"g3":1,"g4":1,"g5":0,"g6":1,"g7":1}`, "score", "gad7", "--norms-dir", "")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	var res scoring.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if res.Total == nil || *res.Total != 8 {
		t.Errorf("expected total 8, got %v", res.Total)
	}
	if res.Severity != "mild" {
		t.Errorf("expected mild, got %s", res.Severity)
	}
}

func TestScoreCmd_YAMLWithDemographics(t *testing.T) {
	out, err := runCLI(t, `{"coding_raw":63}`, "score", "coding", "--age", "32", "--format", "yaml", "--norms-dir", "")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "standardized_score: 8") {
		t.Errorf("expected standardized_score 8 in:\n%s", out)
	}
}

func TestScoreCmd_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"unknown instrument", `{}`, []string{"score", "hamilton"}},
		{"bad json", `{"p1":`, []string{"score", "phq9"}},
		{"bad gender", `{}`, []string{"score", "ecg", "--gender", "x"}},
		{"strict with missing items", `{"p1":1}`, []string{"score", "phq9", "--strict"}},
		{"unknown format", `{}`, []string{"score", "phq9", "--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--norms-dir", "")
			if _, err := runCLI(t, tt.stdin, args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPrefillCmd(t *testing.T) {
	record := `{"tobacco_current":"1","tobacco_current_product":"{cigarette,\"rolled tobacco\"}","tobacco_per_day":"12"}`

	out, err := runCLI(t, record, "prefill", "lifestyle", "--definitions-dir", "")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if rec["tobacco"] != "oui" || rec["tobacco_status"] != "current" {
		t.Errorf("expected the legacy flag backfilled, got %v", rec)
	}
	if rec["tobacco_per_day"] != float64(12) {
		t.Errorf("expected a numeric per-day count, got %#v", rec["tobacco_per_day"])
	}

	diff, err := runCLI(t, record, "prefill", "lifestyle", "--diff", "--definitions-dir", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(diff, "--- stored") || !strings.Contains(diff, "+tobacco_status: current") {
		t.Errorf("unexpected diff:\n%s", diff)
	}
}

func TestPrefillCmd_CanonicalRecord(t *testing.T) {
	out, err := runCLI(t, `{"p1":1}`, "prefill", "phq9", "--diff", "--definitions-dir", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "already canonical") {
		t.Errorf("expected no changes, got:\n%s", out)
	}
}

func TestPrefillCmd_RecordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	if err := os.WriteFile(path, []byte(`{"i1":"3"}`), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "", "prefill", "isi", "--record", path, "--definitions-dir", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"i1": 3`) {
		t.Errorf("expected i1 resolved to 3, got:\n%s", out)
	}
}

func TestNormsCheck(t *testing.T) {
	out, err := runCLI(t, "", "norms", "check", "--norms-dir", "", "--definitions-dir", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"wais4.coding", "wais3.digit_symbol", "span.digit_forward", "qids_sr16"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in the listing:\n%s", want, out)
		}
	}
}

func TestNormsCheck_InvalidDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "", "norms", "check", "--norms-dir", dir, "--definitions-dir", ""); err == nil {
		t.Error("expected a validation error for a broken table")
	}
}

func TestNormsCheck_DirsFromConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NORMS_DIR", dir)
	t.Setenv("DEFINITIONS_DIR", "")

	if _, err := runCLI(t, "", "norms", "check"); err == nil {
		t.Error("expected NORMS_DIR from the configuration to be loaded")
	}
	if _, err := runCLI(t, `{"coding_raw":63}`, "score", "coding", "--age", "32"); err == nil {
		t.Error("expected score to load norm tables from NORMS_DIR")
	}
	if out, err := runCLI(t, "", "norms", "check", "--norms-dir", ""); err != nil {
		t.Errorf("flag should override the configuration: %v\n%s", err, out)
	}
}

func TestPrefillCmd_DefinitionsDirFromConfig(t *testing.T) {
	t.Setenv("DEFINITIONS_DIR", filepath.Join(t.TempDir(), "missing"))
	if _, err := runCLI(t, `{"p1":1}`, "prefill", "phq9"); err == nil {
		t.Error("expected DEFINITIONS_DIR from the configuration to be used")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	fsys := migrationsFS("")
	data, err := fs.ReadFile(fsys, "001_assessment_result.sql")
	if err != nil {
		t.Fatalf("expected the embedded schema: %v", err)
	}
	if !strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS assessment_result") {
		t.Error("unexpected schema content")
	}
}

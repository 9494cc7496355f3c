package norms

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/ehr/clinscore/pkg/nullable"
)

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := DefaultStore()
	if err != nil {
		t.Fatalf("load embedded tables: %v", err)
	}
	return NewEngine(store)
}

func intPtr(v int) *int { return &v }

const sparseTable = `id: test.sparse
version: "1"
convention: max_raw
raw_max: 20
bands:
  - age: "20-39"
    thresholds: [0, 0, 2, 0, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 0, 20]
  - age: "40+"
    thresholds: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19]
`

func TestDefaultStore_LoadsShippedTables(t *testing.T) {
	e := defaultEngine(t)
	for _, id := range []string{TableWAIS4DigitSpan, TableWAIS4Coding, TableWAIS3DigitSymbol, TableMEM3SpatialSpan} {
		if _, ok := e.Store().ScoreTable(id); !ok {
			t.Errorf("missing score table %s", id)
		}
	}
	for _, id := range []string{SpanDigitForward, SpanDigitBackward, SpanSpatialForward, SpanSpatialBackward} {
		if _, ok := e.Store().SpanTable(id); !ok {
			t.Errorf("missing span table %s", id)
		}
	}
	if got := len(e.Store().Tables()); got != 8 {
		t.Errorf("expected 8 tables, got %d", got)
	}
}

func TestScaled_MaxRawConvention(t *testing.T) {
	e := defaultEngine(t)
	// 16-17 row: [13, 15, 16, 18, ...]
	tests := []struct {
		raw  float64
		want int
	}{
		{0, 1},
		{13, 1},
		{14, 2},
		{15, 2},
		{16, 3},
		{44, 19},
		{48, 19},
		{60, 19},
	}
	for _, tt := range tests {
		got, err := e.Scaled(TableWAIS4DigitSpan, tt.raw, 16)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Scaled != tt.want {
			t.Errorf("raw %v: scaled %d, want %d", tt.raw, got.Scaled, tt.want)
		}
		if got.Band != "16-17" {
			t.Errorf("raw %v: band %s", tt.raw, got.Band)
		}
	}
}

func TestScaled_MinRawConvention(t *testing.T) {
	e := defaultEngine(t)
	// 16-17 row: [0, 36, 41, 46, ...]
	tests := []struct {
		raw  float64
		want int
	}{
		{0, 1},
		{35, 1},
		{36, 2},
		{40, 2},
		{41, 3},
		{133, 19},
	}
	for _, tt := range tests {
		got, _ := e.Scaled(TableWAIS3DigitSymbol, tt.raw, 17)
		if got.Scaled != tt.want {
			t.Errorf("raw %v: scaled %d, want %d", tt.raw, got.Scaled, tt.want)
		}
	}
	// 80+ row starts [0, 0, 4, ...]: scaled 2 cannot be earned.
	got, _ := e.Scaled(TableWAIS3DigitSymbol, 3, 85)
	if got.Scaled != 1 {
		t.Errorf("raw 3 at 85: scaled %d, want 1", got.Scaled)
	}
	got, _ = e.Scaled(TableWAIS3DigitSymbol, 4, 85)
	if got.Scaled != 3 {
		t.Errorf("raw 4 at 85: scaled %d, want 3", got.Scaled)
	}
}

func TestScaled_SkipsUnreachableThresholds(t *testing.T) {
	store, err := Load(fstest.MapFS{"sparse.yaml": {Data: []byte(sparseTable)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e := NewEngine(store)
	tests := []struct {
		raw  float64
		want int
	}{
		{1, 3},
		{2, 3},
		{3, 5},
		{16, 17},
		{17, 19},
	}
	for _, tt := range tests {
		got, _ := e.Scaled("test.sparse", tt.raw, 25)
		if got.Scaled != tt.want {
			t.Errorf("raw %v: scaled %d, want %d", tt.raw, got.Scaled, tt.want)
		}
	}
}

func TestScaled_AgeOutsideBands(t *testing.T) {
	e := defaultEngine(t)
	young, err := e.Scaled(TableWAIS4Coding, 50, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if young.Band != "16-17" {
		t.Errorf("age 9 band %s, want 16-17", young.Band)
	}
	old, err := e.Scaled(TableWAIS4Coding, 50, 104)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if old.Band != "80+" {
		t.Errorf("age 104 band %s, want 80+", old.Band)
	}
	if old.Scaled < young.Scaled {
		t.Errorf("same raw should not score lower in the oldest band (%d < %d)", old.Scaled, young.Scaled)
	}
}

func TestScaled_UnknownTable(t *testing.T) {
	e := defaultEngine(t)
	_, err := e.Scaled("nope", 1, 30)
	if !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}

func TestZFromScaled(t *testing.T) {
	tests := map[int]float64{10: 0, 13: 1, 7: -1, 11: 0.33, 1: -3, 19: 3}
	for ss, want := range tests {
		if got := ZFromScaled(ss); got != want {
			t.Errorf("ZFromScaled(%d) = %v, want %v", ss, got, want)
		}
	}
}

func TestSpanZ(t *testing.T) {
	e := defaultEngine(t)
	// 16-29, education 2: mean 6.50, sd 1.01
	z, err := e.SpanZ(SpanDigitForward, nullable.Of(8), 25, intPtr(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := z.Get(); !ok || v != 1.49 {
		t.Errorf("expected 1.49, got %v (%v)", v, ok)
	}

	nullCases := []struct {
		name string
		span nullable.Float
		age  int
		edu  *int
	}{
		{"missing education", nullable.Of(6), 25, nil},
		{"education too high", nullable.Of(6), 25, intPtr(5)},
		{"education negative", nullable.Of(6), 25, intPtr(-1)},
		{"null cell", nullable.Of(6), 20, intPtr(0)},
		{"null span", nullable.Null(), 40, intPtr(2)},
	}
	for _, tc := range nullCases {
		z, err := e.SpanZ(SpanDigitForward, tc.span, tc.age, tc.edu)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if z.Valid() {
			t.Errorf("%s: expected null z, got %v", tc.name, z.Or(0))
		}
	}
}

func TestSpanLength(t *testing.T) {
	tests := []struct {
		passed []bool
		want   int
	}{
		{nil, 0},
		{[]bool{false, false}, 0},
		{[]bool{true}, 2},
		{[]bool{true, true, false}, 3},
		{[]bool{true, false, true, false}, 4},
	}
	for _, tt := range tests {
		if got := SpanLength(tt.passed); got != tt.want {
			t.Errorf("SpanLength(%v) = %d, want %d", tt.passed, got, tt.want)
		}
	}
}

func TestParseAgeBand(t *testing.T) {
	b, err := ParseAgeBand("80+")
	if err != nil || !b.Open || b.Low != 80 || !b.Contains(120) {
		t.Errorf("unexpected band %+v (%v)", b, err)
	}
	b, err = ParseAgeBand("16-17")
	if err != nil || b.Contains(18) || !b.Contains(16) {
		t.Errorf("unexpected band %+v (%v)", b, err)
	}
	for _, bad := range []string{"", "abc", "20-10", "x+"} {
		if _, err := ParseAgeBand(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestLoad_Validation(t *testing.T) {
	bad := `id: bad
convention: max_raw
raw_max: 10
bands:
  - age: "20-29"
    thresholds: [1, 2, 3]
  - age: "31-40"
    thresholds: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 10, 0, 0, 0, 0, 0, 0, 0, 0]
`
	_, err := Load(fstest.MapFS{"bad.yaml": {Data: []byte(bad)}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"expected 19 thresholds", "does not follow", "must increase", "open-ended"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in:\n%s", want, msg)
		}
	}
}

func TestEngine_ConcurrentLookups(t *testing.T) {
	e := defaultEngine(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(age int) {
			defer wg.Done()
			for raw := 0; raw <= 48; raw++ {
				if _, err := e.Scaled(TableWAIS4DigitSpan, float64(raw), age); err != nil {
					t.Error(err)
					return
				}
			}
		}(16 + i*5)
	}
	wg.Wait()
}

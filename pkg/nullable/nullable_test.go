package nullable

import (
	"encoding/json"
	"math"
	"testing"
)

func TestArithmetic_PropagatesNull(t *testing.T) {
	a, n := Of(3), Null()
	ops := map[string]Float{
		"add": a.Add(n),
		"sub": n.Sub(a),
		"mul": a.Mul(n),
		"div": n.Div(a),
	}
	for name, got := range ops {
		if got.Valid() {
			t.Errorf("%s: expected null, got %v", name, got.Or(-1))
		}
	}
}

func TestDiv_ByZeroIsNull(t *testing.T) {
	if got := Of(1).Div(Of(0)); got.Valid() {
		t.Fatalf("expected null, got %v", got.Or(-1))
	}
}

func TestOf_RejectsNaNAndInf(t *testing.T) {
	if Of(math.NaN()).Valid() || Of(math.Inf(1)).Valid() {
		t.Fatal("NaN and Inf must be null")
	}
}

func TestSqrt(t *testing.T) {
	if v, _ := Of(9).Sqrt().Get(); v != 3 {
		t.Errorf("expected 3, got %v", v)
	}
	if Of(-1).Sqrt().Valid() {
		t.Error("sqrt of negative must be null")
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int
		want   float64
	}{
		{4.7227, 2, 4.72},
		{0.41216, 3, 0.412},
		{2.5, 0, 3},
		{-2.5, 0, -3},
	}
	for _, tt := range tests {
		if got := Round(tt.in, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
		}
	}
}

func TestSum(t *testing.T) {
	if v, ok := Sum(Of(1), Of(2), Of(3)).Get(); !ok || v != 6 {
		t.Errorf("expected 6, got %v (%v)", v, ok)
	}
	if Sum(Of(1), Null()).Valid() {
		t.Error("sum with a null operand must be null")
	}
}

func TestMaxMissingZero(t *testing.T) {
	if v, _ := MaxMissingZero(Of(2), Of(1), Of(0), Null()).Get(); v != 2 {
		t.Errorf("expected 2, got %v", v)
	}
	if MaxMissingZero(Null(), Null()).Valid() {
		t.Error("all-null max must be null")
	}
	if v, _ := MaxMissingZero(Of(-1), Null()).Get(); v != 0 {
		t.Errorf("absent member counts as 0, got %v", v)
	}
}

func TestJSON(t *testing.T) {
	type wrap struct {
		A Float `json:"a"`
		B Float `json:"b"`
	}
	data, err := json.Marshal(wrap{A: Of(1.5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"a":1.5,"b":null}` {
		t.Errorf("unexpected json %s", data)
	}
	var back wrap
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := back.A.Get(); !ok || v != 1.5 || back.B.Valid() {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

// Package nullable provides a float type whose null state propagates through
// arithmetic, so a formula with a missing operand yields a missing result
// instead of a zero or a NaN.
package nullable

import (
	"encoding/json"
	"math"
)

// Float is an optional float64. The zero value is null.
type Float struct {
	v  float64
	ok bool
}

// Of returns a valid Float. NaN and infinities are treated as null.
func Of(v float64) Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Float{}
	}
	return Float{v: v, ok: true}
}

// Null returns the null Float.
func Null() Float { return Float{} }

func (f Float) Valid() bool { return f.ok }

// Get returns the value and whether it is defined.
func (f Float) Get() (float64, bool) { return f.v, f.ok }

// Or returns the value, or def when null.
func (f Float) Or(def float64) float64 {
	if !f.ok {
		return def
	}
	return f.v
}

// Ptr returns a pointer to a copy of the value, or nil when null.
func (f Float) Ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

func (f Float) Add(o Float) Float {
	if !f.ok || !o.ok {
		return Float{}
	}
	return Of(f.v + o.v)
}

func (f Float) Sub(o Float) Float {
	if !f.ok || !o.ok {
		return Float{}
	}
	return Of(f.v - o.v)
}

func (f Float) Mul(o Float) Float {
	if !f.ok || !o.ok {
		return Float{}
	}
	return Of(f.v * o.v)
}

// Div is null when either side is null or the divisor is zero.
func (f Float) Div(o Float) Float {
	if !f.ok || !o.ok || o.v == 0 {
		return Float{}
	}
	return Of(f.v / o.v)
}

// Sqrt is null for negative input.
func (f Float) Sqrt() Float {
	if !f.ok || f.v < 0 {
		return Float{}
	}
	return Of(math.Sqrt(f.v))
}

// Round rounds half away from zero to the given number of decimals.
func (f Float) Round(places int) Float {
	if !f.ok {
		return Float{}
	}
	return Of(Round(f.v, places))
}

// Map applies fn to a defined value.
func (f Float) Map(fn func(float64) float64) Float {
	if !f.ok {
		return Float{}
	}
	return Of(fn(f.v))
}

// AtLeast reports f >= threshold; the second result is false when f is null.
func (f Float) AtLeast(threshold float64) (bool, bool) {
	if !f.ok {
		return false, false
	}
	return f.v >= threshold, true
}

// Sum adds all values; any null operand makes the sum null.
func Sum(vals ...Float) Float {
	var total float64
	for _, v := range vals {
		if !v.ok {
			return Float{}
		}
		total += v.v
	}
	return Of(total)
}

// MaxMissingZero returns the maximum, counting null operands as 0. The result
// is null only when every operand is null.
func MaxMissingZero(vals ...Float) Float {
	best := 0.0
	seen := false
	for _, v := range vals {
		if !v.ok {
			continue
		}
		if !seen || v.v > best {
			best = v.v
		}
		seen = true
	}
	if !seen {
		return Float{}
	}
	if best < 0 {
		// absent members count as 0
		if countNull(vals) > 0 {
			best = 0
		}
	}
	return Of(best)
}

func countNull(vals []Float) int {
	n := 0
	for _, v := range vals {
		if !v.ok {
			n++
		}
	}
	return n
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.ok {
		return []byte("null"), nil
	}
	return json.Marshal(f.v)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Of(v)
	return nil
}

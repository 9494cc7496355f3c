package instrument

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// ParseNumber reads a stored numeric answer. Text may use a decimal point or a
// single decimal comma ("31,5"). Booleans, empty text and non-finite values
// are not numbers.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// AnswerText renders a stored answer for spelling and label matching.
func AnswerText(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

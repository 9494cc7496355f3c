package scoring

import (
	"fmt"

	"github.com/ehr/clinscore/internal/norms"
	"github.com/ehr/clinscore/pkg/nullable"
)

const (
	spanItems  = 8
	spanTrials = 2
)

// spanPart scores one administration order of a span subtest. Each passed
// trial earns a point. Trials after the discontinue point are absent and
// count 0; when no trial was recorded at all the part is null.
func spanPart(r *reader, prefix string) (raw, span nullable.Float) {
	passed := make([]bool, spanItems)
	recorded, sum := false, 0
	for item := 1; item <= spanItems; item++ {
		for trial := 1; trial <= spanTrials; trial++ {
			v, ok := r.optionalFlag(fmt.Sprintf("%s_%d_t%d", prefix, item, trial)).Get()
			if !ok {
				continue
			}
			recorded = true
			if v == 1 {
				sum++
				passed[item-1] = true
			}
		}
	}
	if !recorded {
		r.missing[prefix+"_1_t1"] = true
		return nullable.Null(), nullable.Null()
	}
	return nullable.Of(float64(sum)), nullable.Of(float64(norms.SpanLength(passed)))
}

type spanOrder struct {
	prefix string
	name   string
}

func spanScorer(orders ...spanOrder) func(*reader, Demographics) outcome {
	return func(r *reader, _ Demographics) outcome {
		o := newOutcome()
		parts := make([]nullable.Float, 0, len(orders))
		for _, ord := range orders {
			raw, span := spanPart(r, ord.prefix)
			parts = append(parts, o.set(ord.name, raw))
			o.set("span_"+ord.name, span)
		}
		o.total = nullable.Sum(parts...)
		return o
	}
}

var (
	scoreDigitSpan = spanScorer(
		spanOrder{"dsf", "forward"},
		spanOrder{"dsb", "backward"},
		spanOrder{"dss", "sequencing"},
	)
	scoreSpatialSpan = spanScorer(
		spanOrder{"ssf", "forward"},
		spanOrder{"ssb", "backward"},
	)
)

func rawScorer(id string) func(*reader, Demographics) outcome {
	return func(r *reader, _ Demographics) outcome {
		o := newOutcome()
		o.total = r.num(id)
		return o
	}
}

// spanNorm binds a span-length component to its age × education table.
type spanNorm struct {
	component string
	table     string
}

var (
	digitSpanNorms = []spanNorm{
		{"span_forward", norms.SpanDigitForward},
		{"span_backward", norms.SpanDigitBackward},
	}
	spatialSpanNorms = []spanNorm{
		{"span_forward", norms.SpanSpatialForward},
		{"span_backward", norms.SpanSpatialBackward},
	}
)

package norms

import (
	"errors"
	"fmt"
	"math"

	"github.com/ehr/clinscore/pkg/nullable"
)

// ErrUnknownTable is returned for a table id the store does not hold.
var ErrUnknownTable = errors.New("unknown norm table")

const (
	minScaled = 1
	maxScaled = ScaledPoints
)

// Table ids of the shipped tables.
const (
	TableWAIS4DigitSpan   = "wais4.digit_span"
	TableWAIS4Coding      = "wais4.coding"
	TableWAIS3DigitSymbol = "wais3.digit_symbol"
	TableMEM3SpatialSpan  = "mem3.spatial_span"

	SpanDigitForward    = "span.digit_forward"
	SpanDigitBackward   = "span.digit_backward"
	SpanSpatialForward  = "span.spatial_forward"
	SpanSpatialBackward = "span.spatial_backward"
)

// Standardized is the outcome of a scaled-score lookup.
type Standardized struct {
	Scaled int     `json:"scaled"`
	Z      float64 `json:"z"`
	Band   string  `json:"band"`
}

// Engine converts raw scores using a Store. It holds no mutable state.
type Engine struct {
	store *Store
}

func NewEngine(store *Store) *Engine {
	return &Engine{store: store}
}

// Store returns the underlying table store.
func (e *Engine) Store() *Store { return e.store }

// Scaled converts raw into a scaled score (1..19) for a subject of the given
// age using the table identified by tableID.
func (e *Engine) Scaled(tableID string, raw float64, age int) (Standardized, error) {
	t, ok := e.store.ScoreTable(tableID)
	if !ok {
		return Standardized{}, fmt.Errorf("%w: %s", ErrUnknownTable, tableID)
	}
	bi := bandIndex(t.Bands, age)
	ss := lookup(t.Convention, t.Thresholds[bi], raw)
	return Standardized{Scaled: ss, Z: ZFromScaled(ss), Band: t.Bands[bi].Label}, nil
}

func lookup(conv Convention, row [ScaledPoints]int, raw float64) int {
	if raw <= 0 {
		return minScaled
	}
	switch conv {
	case MinRaw:
		best := minScaled
		for i, th := range row {
			if th == 0 {
				continue
			}
			if float64(th) <= raw {
				best = i + 1
			}
		}
		return clamp(best)
	default:
		for i, th := range row {
			if th == 0 {
				continue
			}
			if float64(th) >= raw {
				return clamp(i + 1)
			}
		}
		return maxScaled
	}
}

func clamp(ss int) int {
	if ss < minScaled {
		return minScaled
	}
	if ss > maxScaled {
		return maxScaled
	}
	return ss
}

// ZFromScaled converts a scaled score (mean 10, SD 3) to a z-score rounded to
// two decimals.
func ZFromScaled(ss int) float64 {
	return nullable.Round(float64(ss-10)/3, 2)
}

// SpanZ computes the z-score of an achieved span length against the
// age × education norms of tableID. The result is null when education is
// missing or out of range, or when the norm cell is undefined.
func (e *Engine) SpanZ(tableID string, span nullable.Float, age int, education *int) (nullable.Float, error) {
	t, ok := e.store.SpanTable(tableID)
	if !ok {
		return nullable.Null(), fmt.Errorf("%w: %s", ErrUnknownTable, tableID)
	}
	if !span.Valid() || education == nil || *education < 0 || *education >= EducationLevels {
		return nullable.Null(), nil
	}
	bi := bandIndex(t.Bands, age)
	mean, sd := t.Mean[bi][*education], t.SD[bi][*education]
	if mean == nil || sd == nil || *sd == 0 || math.IsNaN(*sd) {
		return nullable.Null(), nil
	}
	return span.Sub(nullable.Of(*mean)).Div(nullable.Of(*sd)).Round(2), nil
}

// SpanLength returns the span reached on a subtest: the highest item with at
// least one passed trial, where item n (1-based) presents n+1 elements.
// passed[i] reports whether item i+1 had a passed trial. It returns 0 when no
// item was passed.
func SpanLength(passed []bool) int {
	span := 0
	for i, ok := range passed {
		if ok {
			span = i + 2
		}
	}
	return span
}

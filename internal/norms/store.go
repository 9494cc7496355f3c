// Package norms holds the normative lookup tables and the engine that turns
// raw neuropsychological scores into scaled scores and z-scores.
package norms

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// ScaledPoints is the number of scaled scores (1..19) in every score table.
const ScaledPoints = 19

// Convention states how a score table's thresholds must be read.
type Convention string

const (
	// MaxRaw thresholds hold the highest raw score that still earns the
	// scaled score at that index.
	MaxRaw Convention = "max_raw"
	// MinRaw thresholds hold the lowest raw score required for the scaled
	// score at that index.
	MinRaw Convention = "min_raw"
)

// AgeBand is a closed age range; an open band has no upper bound.
type AgeBand struct {
	Label string
	Low   int
	High  int
	Open  bool
}

// Contains reports whether age falls inside the band.
func (b AgeBand) Contains(age int) bool {
	return age >= b.Low && (b.Open || age <= b.High)
}

// ParseAgeBand parses labels such as "16-17" and "80+".
func ParseAgeBand(label string) (AgeBand, error) {
	s := strings.TrimSpace(label)
	if strings.HasSuffix(s, "+") {
		low, err := strconv.Atoi(strings.TrimSuffix(s, "+"))
		if err != nil {
			return AgeBand{}, fmt.Errorf("invalid age band %q", label)
		}
		return AgeBand{Label: s, Low: low, Open: true}, nil
	}
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return AgeBand{}, fmt.Errorf("invalid age band %q", label)
	}
	low, err1 := strconv.Atoi(lo)
	high, err2 := strconv.Atoi(hi)
	if err1 != nil || err2 != nil || high < low {
		return AgeBand{}, fmt.Errorf("invalid age band %q", label)
	}
	return AgeBand{Label: s, Low: low, High: high}, nil
}

// bandIndex resolves age to a band. Ages below the first band use the first
// band; ages past the last band use the last band.
func bandIndex(bands []AgeBand, age int) int {
	if age < bands[0].Low {
		return 0
	}
	for i, b := range bands {
		if b.Contains(age) {
			return i
		}
	}
	return len(bands) - 1
}

// ScoreTable maps raw scores to scaled scores per age band.
type ScoreTable struct {
	ID         string
	Version    string
	Source     string
	Convention Convention
	RawMax     int
	Bands      []AgeBand
	// Thresholds[band][i] belongs to scaled score i+1. A 0 marks a scaled
	// score that cannot be earned in that band.
	Thresholds [][ScaledPoints]int
}

// SpanTable holds span-length mean and SD per age band and education level.
type SpanTable struct {
	ID      string
	Version string
	Source  string
	Bands   []AgeBand
	// Mean[band][education] and SD[band][education]; nil means no norm.
	Mean [][EducationLevels]*float64
	SD   [][EducationLevels]*float64
}

// EducationLevels is the number of education levels (0..4) in span tables.
const EducationLevels = 5

// Store is the read-only set of tables. It is safe for concurrent use.
type Store struct {
	scores map[string]*ScoreTable
	spans  map[string]*SpanTable
}

type rawTable struct {
	ID         string    `yaml:"id"`
	Version    string    `yaml:"version"`
	Source     string    `yaml:"source"`
	Convention string    `yaml:"convention"`
	RawMax     int       `yaml:"raw_max"`
	Bands      []rawBand `yaml:"bands"`
}

type rawBand struct {
	Age        string     `yaml:"age"`
	Thresholds []int      `yaml:"thresholds"`
	Mean       []*float64 `yaml:"mean"`
	SD         []*float64 `yaml:"sd"`
}

// ValidationErrors aggregates every problem found in a table set.
type ValidationErrors []string

func (errs ValidationErrors) Error() string {
	return strings.Join(errs, "\n")
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
	defaultErr   error
)

// DefaultStore returns the store built from the embedded tables.
func DefaultStore() (*Store, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			defaultErr = err
			return
		}
		defaultStore, defaultErr = Load(sub)
	})
	return defaultStore, defaultErr
}

// Load reads every *.yaml table at the root of fsys. Tables carrying
// thresholds are score tables; tables carrying mean/sd are span tables.
func Load(fsys fs.FS) (*Store, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("scan norm tables: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no norm tables found")
	}
	sort.Strings(files)

	s := &Store{scores: map[string]*ScoreTable{}, spans: map[string]*SpanTable{}}
	var errs ValidationErrors
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var raw rawTable
		if err := yaml.Unmarshal(data, &raw); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if raw.ID == "" {
			errs = append(errs, fmt.Sprintf("%s: id is required", name))
			continue
		}
		if s.scores[raw.ID] != nil || s.spans[raw.ID] != nil {
			errs = append(errs, fmt.Sprintf("%s: duplicate table %q", name, raw.ID))
			continue
		}
		if raw.Convention != "" {
			t, tErrs := buildScoreTable(raw)
			errs = append(errs, prefix(name, tErrs)...)
			if len(tErrs) == 0 {
				s.scores[t.ID] = t
			}
			continue
		}
		t, tErrs := buildSpanTable(raw)
		errs = append(errs, prefix(name, tErrs)...)
		if len(tErrs) == 0 {
			s.spans[t.ID] = t
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return s, nil
}

func prefix(name string, errs []string) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = name + ": " + e
	}
	return out
}

func buildBands(raw []rawBand) ([]AgeBand, []string) {
	var errs []string
	if len(raw) == 0 {
		return nil, []string{"at least one age band is required"}
	}
	bands := make([]AgeBand, 0, len(raw))
	for i, rb := range raw {
		b, err := ParseAgeBand(rb.Age)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if b.Open && i != len(raw)-1 {
			errs = append(errs, fmt.Sprintf("open band %q must be last", b.Label))
		}
		if n := len(bands); n > 0 && !bands[n-1].Open && b.Low != bands[n-1].High+1 {
			errs = append(errs, fmt.Sprintf("band %q does not follow %q", b.Label, bands[n-1].Label))
		}
		bands = append(bands, b)
	}
	if len(bands) > 0 && !bands[len(bands)-1].Open {
		errs = append(errs, "last age band must be open-ended")
	}
	return bands, errs
}

func buildScoreTable(raw rawTable) (*ScoreTable, []string) {
	conv := Convention(raw.Convention)
	var errs []string
	if conv != MaxRaw && conv != MinRaw {
		errs = append(errs, fmt.Sprintf("unknown convention %q", raw.Convention))
	}
	if raw.RawMax <= 0 {
		errs = append(errs, "raw_max must be positive")
	}
	bands, bErrs := buildBands(raw.Bands)
	errs = append(errs, bErrs...)

	t := &ScoreTable{ID: raw.ID, Version: raw.Version, Source: raw.Source, Convention: conv, RawMax: raw.RawMax, Bands: bands}
	for _, rb := range raw.Bands {
		if len(rb.Thresholds) != ScaledPoints {
			errs = append(errs, fmt.Sprintf("band %s: expected %d thresholds, got %d", rb.Age, ScaledPoints, len(rb.Thresholds)))
			continue
		}
		var row [ScaledPoints]int
		prev := 0
		for i, v := range rb.Thresholds {
			if v < 0 || v > raw.RawMax {
				errs = append(errs, fmt.Sprintf("band %s: threshold %d out of range", rb.Age, v))
			}
			if v != 0 {
				if v <= prev {
					errs = append(errs, fmt.Sprintf("band %s: thresholds must increase (scaled %d)", rb.Age, i+1))
				}
				prev = v
			}
			row[i] = v
		}
		t.Thresholds = append(t.Thresholds, row)
	}
	return t, errs
}

func buildSpanTable(raw rawTable) (*SpanTable, []string) {
	bands, errs := buildBands(raw.Bands)
	t := &SpanTable{ID: raw.ID, Version: raw.Version, Source: raw.Source, Bands: bands}
	for _, rb := range raw.Bands {
		if len(rb.Mean) != EducationLevels || len(rb.SD) != EducationLevels {
			errs = append(errs, fmt.Sprintf("band %s: mean and sd need %d education levels", rb.Age, EducationLevels))
			continue
		}
		var mean, sd [EducationLevels]*float64
		copy(mean[:], rb.Mean)
		copy(sd[:], rb.SD)
		t.Mean = append(t.Mean, mean)
		t.SD = append(t.SD, sd)
	}
	return t, errs
}

// ScoreTable returns a score table by id.
func (s *Store) ScoreTable(id string) (*ScoreTable, bool) {
	t, ok := s.scores[id]
	return t, ok
}

// SpanTable returns a span table by id.
func (s *Store) SpanTable(id string) (*SpanTable, bool) {
	t, ok := s.spans[id]
	return t, ok
}

// TableInfo summarises a loaded table.
type TableInfo struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Version    string `json:"version"`
	Convention string `json:"convention,omitempty"`
	Bands      int    `json:"bands"`
	Source     string `json:"source"`
}

// Tables lists every loaded table sorted by id.
func (s *Store) Tables() []TableInfo {
	var out []TableInfo
	for _, t := range s.scores {
		out = append(out, TableInfo{ID: t.ID, Kind: "score", Version: t.Version, Convention: string(t.Convention), Bands: len(t.Bands), Source: t.Source})
	}
	for _, t := range s.spans {
		out = append(out, TableInfo{ID: t.ID, Kind: "span", Version: t.Version, Bands: len(t.Bands), Source: t.Source})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

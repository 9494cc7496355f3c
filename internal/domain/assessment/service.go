package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/internal/prefill"
	"github.com/ehr/clinscore/internal/scoring"
)

// ErrPersistenceDisabled is returned by operations that need stored data when
// the service runs without a database.
var ErrPersistenceDisabled = errors.New("persistence is not configured")

// InvalidInputError marks caller mistakes that are not about the answers
// themselves (bad dates, unknown gender).
type InvalidInputError struct{ Err error }

func (e *InvalidInputError) Error() string { return e.Err.Error() }
func (e *InvalidInputError) Unwrap() error { return e.Err }

// TxFunc runs fn atomically. The default runs fn directly.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	engine  *scoring.Engine
	catalog *instrument.Catalog
	results ResultRepository
	answers AnswerRepository
	tx      TxFunc
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService wires the scoring engine and the catalog. results and answers may
// both be nil, in which case nothing is stored.
func NewService(engine *scoring.Engine, catalog *instrument.Catalog, results ResultRepository, answers AnswerRepository, logger zerolog.Logger) *Service {
	return &Service{
		engine:  engine,
		catalog: catalog,
		results: results,
		answers: answers,
		tx:      func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) },
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetTx makes Score store the answers and the result in one transaction.
func (s *Service) SetTx(tx TxFunc) {
	if tx != nil {
		s.tx = tx
	}
}

func (s *Service) stateful() bool {
	return s.results != nil && s.answers != nil
}

func parseCode(raw string) (instrument.Code, error) {
	code, err := instrument.ParseCode(raw)
	if err != nil {
		return "", &scoring.UnknownInstrumentError{Code: raw}
	}
	return code, nil
}

// Instruments lists the loaded definitions.
func (s *Service) Instruments() []*instrument.Definition {
	return s.catalog.List()
}

func (s *Service) Instrument(raw string) (*instrument.Definition, error) {
	code, err := parseCode(raw)
	if err != nil {
		return nil, err
	}
	def, err := s.catalog.Get(code)
	if err != nil {
		return nil, &scoring.UnknownInstrumentError{Code: raw}
	}
	return def, nil
}

// Score scores a submission. When a patient is given and persistence is
// configured, the answers and the persistable patch are stored together.
func (s *Service) Score(ctx context.Context, sub Submission) (*Scored, error) {
	at := s.now()
	if sub.AssessedAt != nil {
		at = sub.AssessedAt.UTC()
	}
	demo, err := sub.Subject.demographics(at)
	if err != nil {
		return nil, &InvalidInputError{Err: err}
	}
	if sub.Answers == nil {
		sub.Answers = scoring.RawAnswers{}
	}

	score := s.engine.ScoreAndInterpret
	if sub.Strict {
		score = s.engine.ScoreStrict
	}
	res, err := score(sub.Instrument, sub.Answers, demo)
	if err != nil {
		s.logger.Debug().Err(err).Str("instrument", string(sub.Instrument)).Msg("scoring rejected")
		return nil, err
	}
	s.logger.Debug().
		Str("instrument", string(res.Instrument)).
		Str("severity", res.Severity).
		Bool("total_null", res.Total == nil).
		Int("alerts", len(res.ClinicalAlerts)).
		Msg("scored")

	out := &Scored{Result: res}
	if sub.PatientID == nil || !s.stateful() {
		return out, nil
	}

	stored := &Assessment{
		PatientID:        sub.PatientID,
		PersistablePatch: res.Patch(),
		AssessedAt:       at,
	}
	rec := &AnswerRecord{
		PatientID:  *sub.PatientID,
		Instrument: sub.Instrument,
		Answers:    sub.Answers,
		UpdatedAt:  at,
	}
	if def, err := s.catalog.Get(sub.Instrument); err == nil {
		rec.DefinitionVersion = def.Version
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.answers.Upsert(ctx, rec); err != nil {
			return err
		}
		return s.results.Create(ctx, stored)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("instrument", string(sub.Instrument)).Msg("persist result")
		return nil, fmt.Errorf("persist result: %w", err)
	}
	out.Stored = stored
	return out, nil
}

// Normalize reconciles a record supplied by the caller.
func (s *Service) Normalize(raw string, stored map[string]any, withDiff bool) (*PrefillResult, error) {
	def, err := s.Instrument(raw)
	if err != nil {
		return nil, err
	}
	return normalize(def, stored, withDiff)
}

// Prefill reconciles the last stored answers of a patient.
func (s *Service) Prefill(ctx context.Context, patientID uuid.UUID, raw string, withDiff bool) (*PrefillResult, error) {
	def, err := s.Instrument(raw)
	if err != nil {
		return nil, err
	}
	if !s.stateful() {
		return nil, ErrPersistenceDisabled
	}
	rec, err := s.answers.Get(ctx, patientID, def.Code)
	if err != nil {
		return nil, err
	}
	return normalize(def, rec.Answers, withDiff)
}

func normalize(def *instrument.Definition, stored map[string]any, withDiff bool) (*PrefillResult, error) {
	if stored == nil {
		stored = map[string]any{}
	}
	rec := prefill.Normalize(def, stored)
	out := &PrefillResult{Instrument: def.Code, DefinitionVersion: def.Version, Record: rec}
	if withDiff {
		d, err := prefill.Diff(stored, rec)
		if err != nil {
			return nil, err
		}
		out.Diff = d
	}
	return out, nil
}

func (s *Service) GetResult(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	if !s.stateful() {
		return nil, ErrPersistenceDisabled
	}
	return s.results.GetByID(ctx, id)
}

// ListResults pages through a patient's results; rawCode may be empty.
func (s *Service) ListResults(ctx context.Context, patientID uuid.UUID, rawCode string, limit, offset int) ([]*Assessment, int, error) {
	if !s.stateful() {
		return nil, 0, ErrPersistenceDisabled
	}
	var code instrument.Code
	if rawCode != "" {
		c, err := parseCode(rawCode)
		if err != nil {
			return nil, 0, err
		}
		code = c
	}
	return s.results.ListByPatient(ctx, patientID, code, limit, offset)
}

package assessment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ehr/clinscore/internal/instrument"
)

var ErrNotFound = errors.New("not found")

type ResultRepository interface {
	Create(ctx context.Context, a *Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error)
	// ListByPatient returns a page of results, newest first. An empty code
	// lists every instrument.
	ListByPatient(ctx context.Context, patientID uuid.UUID, code instrument.Code, limit, offset int) ([]*Assessment, int, error)
}

type AnswerRepository interface {
	Upsert(ctx context.Context, r *AnswerRecord) error
	Get(ctx context.Context, patientID uuid.UUID, code instrument.Code) (*AnswerRecord, error)
}

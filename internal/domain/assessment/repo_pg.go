package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Result Repository ===========

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewResultRepoPG(pool *pgxpool.Pool) ResultRepository {
	return &resultRepoPG{pool: pool}
}

const resultCols = `id, patient_id, instrument, total, components, displays,
	standardized_score, z_score, norm_table, norm_version, severity, interpretation,
	clinical_alerts, assessed_at, created_at`

func scanResult(row pgx.Row) (*Assessment, error) {
	var a Assessment
	var normTable, normVersion *string
	err := row.Scan(&a.ID, &a.PatientID, &a.Instrument, &a.Total, &a.Components, &a.Displays,
		&a.StandardizedScore, &a.ZScore, &normTable, &normVersion, &a.Severity, &a.Interpretation,
		&a.ClinicalAlerts, &a.AssessedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if normTable != nil {
		a.NormTable = *normTable
	}
	if normVersion != nil {
		a.NormVersion = *normVersion
	}
	return &a, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *resultRepoPG) Create(ctx context.Context, a *Assessment) error {
	a.ID = uuid.New()
	if a.ClinicalAlerts == nil {
		a.ClinicalAlerts = []string{}
	}
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO assessment_result (id, patient_id, instrument, total, components, displays,
			standardized_score, z_score, norm_table, norm_version, severity, interpretation,
			clinical_alerts, assessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`,
		a.ID, a.PatientID, a.Instrument, a.Total, a.Components, a.Displays,
		a.StandardizedScore, a.ZScore, nullIfEmpty(a.NormTable), nullIfEmpty(a.NormVersion),
		a.Severity, a.Interpretation, a.ClinicalAlerts, a.AssessedAt,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment result: %w", err)
	}
	return nil
}

func (r *resultRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	return scanResult(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+resultCols+` FROM assessment_result WHERE id = $1`, id))
}

func (r *resultRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, code instrument.Code, limit, offset int) ([]*Assessment, int, error) {
	where := `WHERE patient_id = $1`
	args := []interface{}{patientID}
	if code != "" {
		where += ` AND instrument = $2`
		args = append(args, code)
	}

	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM assessment_result `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assessment results: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM assessment_result %s ORDER BY assessed_at DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		resultCols, where, len(args)+1, len(args)+2)
	rows, err := q.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list assessment results: %w", err)
	}
	defer rows.Close()

	var items []*Assessment
	for rows.Next() {
		a, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// =========== Answer Repository ===========

type answerRepoPG struct{ pool *pgxpool.Pool }

func NewAnswerRepoPG(pool *pgxpool.Pool) AnswerRepository {
	return &answerRepoPG{pool: pool}
}

func (r *answerRepoPG) Upsert(ctx context.Context, rec *AnswerRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO answer_record (patient_id, instrument, answers, definition_version, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id, instrument) DO UPDATE
		SET answers = EXCLUDED.answers, definition_version = EXCLUDED.definition_version,
			updated_at = EXCLUDED.updated_at`,
		rec.PatientID, rec.Instrument, rec.Answers, nullIfEmpty(rec.DefinitionVersion), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert answer record: %w", err)
	}
	return nil
}

func (r *answerRepoPG) Get(ctx context.Context, patientID uuid.UUID, code instrument.Code) (*AnswerRecord, error) {
	var rec AnswerRecord
	var version *string
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT patient_id, instrument, answers, definition_version, updated_at
		FROM answer_record WHERE patient_id = $1 AND instrument = $2`, patientID, code,
	).Scan(&rec.PatientID, &rec.Instrument, &rec.Answers, &version, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get answer record: %w", err)
	}
	if version != nil {
		rec.DefinitionVersion = *version
	}
	return &rec, nil
}

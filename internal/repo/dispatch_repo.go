package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Malsmug/internal/domain"
)

// dbtx — общий интерфейс *pgxpool.Pool и pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schema = `
	CREATE TABLE IF NOT EXISTS sandbox_dispatches (
		id            UUID PRIMARY KEY,
		analysis_id   TEXT        NOT NULL,
		file_hash     TEXT        NOT NULL,
		replica_index INTEGER     NOT NULL,
		sample_path   TEXT        NOT NULL,
		bait_target   TEXT        NOT NULL,
		pid           INTEGER     NOT NULL DEFAULT 0,
		error         TEXT        NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sandbox_dispatches_analysis_id_idx
		ON sandbox_dispatches (analysis_id);
`

// DispatchRepo — журнал попыток запуска анализатора.
type DispatchRepo struct {
	db      dbtx
	timeout time.Duration
}

// NewDispatchRepo создаёт новый DispatchRepo.
func NewDispatchRepo(db dbtx) *DispatchRepo {
	return &DispatchRepo{db: db, timeout: 3 * time.Second}
}

// EnsureSchema создаёт таблицу журнала, если её нет.
func (r *DispatchRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: create schema: %v", ErrJournal, err)
	}
	return nil
}

// Record сохраняет попытку запуска.
//
// Запись ограничена таймаутом: журнал не должен задерживать
// обработку очереди.
func (r *DispatchRepo) Record(ctx context.Context, rec *domain.DispatchRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO sandbox_dispatches
			(id, analysis_id, file_hash, replica_index, sample_path, bait_target, pid, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.AnalysisID,
		rec.FileHash,
		rec.Index,
		rec.SamplePath,
		rec.BaitTarget,
		rec.PID,
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert dispatch: %v", ErrJournal, err)
	}
	return nil
}

// ListByAnalysisID возвращает попытки запуска для анализа в порядке реплик.
func (r *DispatchRepo) ListByAnalysisID(ctx context.Context, analysisID string) ([]domain.DispatchRecord, error) {
	query := `
		SELECT id, analysis_id, file_hash, replica_index, sample_path, bait_target, pid, error, created_at
		FROM sandbox_dispatches
		WHERE analysis_id = $1
		ORDER BY created_at ASC, replica_index ASC
	`
	rows, err := r.db.Query(ctx, query, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list dispatches by analysis_id: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DispatchRecord, error) {
		var rec domain.DispatchRecord
		err := row.Scan(
			&rec.ID,
			&rec.AnalysisID,
			&rec.FileHash,
			&rec.Index,
			&rec.SamplePath,
			&rec.BaitTarget,
			&rec.PID,
			&rec.Error,
			&rec.CreatedAt,
		)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan dispatches: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// IsNotFound проверяет, что ошибка означает отсутствие записей.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

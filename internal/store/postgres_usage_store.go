package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunamismax/enlarge/internal/domain"
	_ "github.com/lib/pq"
)

const usageSchemaSQL = `
CREATE TABLE IF NOT EXISTS enlarge_runs (
	run_id TEXT PRIMARY KEY,
	base_dir TEXT NOT NULL,
	output_dir TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	files_copied BIGINT NOT NULL,
	images_scaled BIGINT NOT NULL,
	images_passed_through BIGINT NOT NULL,
	archives_rewritten BIGINT NOT NULL,
	entries_skipped BIGINT NOT NULL,
	pixels_produced BIGINT NOT NULL,
	bytes_read BIGINT NOT NULL,
	bytes_written BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
`

const usageColumns = `run_id, base_dir, output_dir, status, error, files_copied, images_scaled,
	images_passed_through, archives_rewritten, entries_skipped, pixels_produced,
	bytes_read, bytes_written, compute_time_ms, started_at, finished_at`

type PostgresUsageStore struct {
	db *sql.DB
}

func NewPostgresUsageStore(ctx context.Context, dsn string) (*PostgresUsageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresUsageStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresUsageStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usageSchemaSQL); err != nil {
		return fmt.Errorf("ensure runs schema: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) Close() error {
	return s.db.Close()
}

func (s *PostgresUsageStore) CreateUsageLog(ctx context.Context, usage domain.RunUsage) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO enlarge_runs (`+usageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		usage.RunID,
		usage.BaseDir,
		usage.OutputDir,
		usage.Status,
		usage.Error,
		usage.FilesCopied,
		usage.ImagesScaled,
		usage.ImagesPassedThru,
		usage.ArchivesRewritten,
		usage.EntriesSkipped,
		usage.PixelsProduced,
		usage.BytesRead,
		usage.BytesWritten,
		usage.ComputeTimeMS,
		usage.StartedAt,
		usage.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run usage: %w", err)
	}
	return nil
}

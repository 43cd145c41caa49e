package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
)

// ErrSyncJobNotFound is returned when a requested sync job cannot be found.
var ErrSyncJobNotFound = errors.New("sync job not found")

// CreateSyncJob inserts the durable record for a new batch sync run.
func CreateSyncJob(ctx context.Context, pool *pgxpool.Pool, job *models.SyncJob) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO sync_jobs (id, query, status)
		VALUES ($1, $2, $3)
		RETURNING started_at
	`, job.ID, job.Query, job.Status).Scan(&job.StartedAt)

	if err != nil {
		return fmt.Errorf("failed to create sync job: %w", err)
	}

	return nil
}

// UpdateSyncJobProgress replaces the counters of a running job.
func UpdateSyncJobProgress(ctx context.Context, pool *pgxpool.Pool, job *models.SyncJob) error {
	_, err := pool.Exec(ctx, `
		UPDATE sync_jobs
		SET messages_found = $1,
			messages_processed = $2,
			messages_skipped = $3,
			messages_failed = $4,
			last_error = NULLIF($5, '')
		WHERE id = $6
	`,
		job.MessagesFound,
		job.MessagesProcessed,
		job.MessagesSkipped,
		job.MessagesFailed,
		job.LastError,
		job.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update sync job progress: %w", err)
	}

	return nil
}

// CompleteSyncJob records the terminal status of a job and its final counters.
func CompleteSyncJob(ctx context.Context, pool *pgxpool.Pool, job *models.SyncJob) error {
	_, err := pool.Exec(ctx, `
		UPDATE sync_jobs
		SET status = $1,
			messages_found = $2,
			messages_processed = $3,
			messages_skipped = $4,
			messages_failed = $5,
			last_error = NULLIF($6, ''),
			completed_at = now()
		WHERE id = $7
	`,
		job.Status,
		job.MessagesFound,
		job.MessagesProcessed,
		job.MessagesSkipped,
		job.MessagesFailed,
		job.LastError,
		job.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to complete sync job: %w", err)
	}

	return nil
}

// GetSyncJob returns the durable record of a sync job.
func GetSyncJob(ctx context.Context, pool *pgxpool.Pool, id string) (*models.SyncJob, error) {
	var job models.SyncJob

	err := pool.QueryRow(ctx, `
		SELECT
			id,
			query,
			status,
			messages_found,
			messages_processed,
			messages_skipped,
			messages_failed,
			COALESCE(last_error, ''),
			started_at,
			completed_at
		FROM sync_jobs
		WHERE id = $1
	`, id).Scan(
		&job.ID,
		&job.Query,
		&job.Status,
		&job.MessagesFound,
		&job.MessagesProcessed,
		&job.MessagesSkipped,
		&job.MessagesFailed,
		&job.LastError,
		&job.StartedAt,
		&job.CompletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSyncJobNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}

	return &job, nil
}

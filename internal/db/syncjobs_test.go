package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
	"github.com/michaelroy-yvr/email-archive-2026/internal/testutil"
)

func TestSyncJobLifecycle(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	job := &models.SyncJob{
		ID:     uuid.NewString(),
		Query:  "label:promotions",
		Status: models.SyncStatusRunning,
	}
	require.NoError(t, CreateSyncJob(ctx, pool, job))
	assert.False(t, job.StartedAt.IsZero(), "CreateSyncJob fills started_at")

	job.MessagesFound = 50
	job.MessagesProcessed = 10
	job.MessagesSkipped = 3
	require.NoError(t, UpdateSyncJobProgress(ctx, pool, job))

	got, err := GetSyncJob(ctx, pool, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusRunning, got.Status)
	assert.Equal(t, 50, got.MessagesFound)
	assert.Equal(t, 10, got.MessagesProcessed)
	assert.Equal(t, 3, got.MessagesSkipped)
	assert.Nil(t, got.CompletedAt)

	job.Status = models.SyncStatusCompleted
	job.MessagesProcessed = 47
	require.NoError(t, CompleteSyncJob(ctx, pool, job))

	got, err = GetSyncJob(ctx, pool, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCompleted, got.Status)
	assert.Equal(t, 47, got.MessagesProcessed)
	assert.NotNil(t, got.CompletedAt)
}

func TestSyncJobFailureRecordsError(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	job := &models.SyncJob{
		ID:     uuid.NewString(),
		Status: models.SyncStatusRunning,
	}
	require.NoError(t, CreateSyncJob(ctx, pool, job))

	job.Status = models.SyncStatusFailed
	job.LastError = "failed to list messages: quota exceeded"
	require.NoError(t, CompleteSyncJob(ctx, pool, job))

	got, err := GetSyncJob(ctx, pool, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, got.Status)
	assert.Equal(t, "failed to list messages: quota exceeded", got.LastError)
}

func TestGetSyncJobNotFound(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	_, err := GetSyncJob(context.Background(), pool, uuid.NewString())
	assert.True(t, errors.Is(err, ErrSyncJobNotFound))
}

// Package syncjob runs batch Gmail syncs and tracks their progress as
// durable sync_jobs rows.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
	"github.com/michaelroy-yvr/email-archive-2026/internal/pipeline"
)

// MessageSource lists and fetches raw Gmail messages.
type MessageSource interface {
	ListMessageIDs(ctx context.Context, query string, maxMessages int64) ([]string, error)
	GetMessage(ctx context.Context, id string) (*gmailapi.Message, error)
}

// MessageProcessor ingests one raw message into the archive.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg *gmailapi.Message) (int64, error)
}

// JobStore persists sync job state.
type JobStore interface {
	CreateSyncJob(ctx context.Context, job *models.SyncJob) error
	UpdateSyncJobProgress(ctx context.Context, job *models.SyncJob) error
	CompleteSyncJob(ctx context.Context, job *models.SyncJob) error
	GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error)
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

type progressEvent struct {
	outcome outcome
	err     error
}

// Runner executes sync jobs one message at a time. Counter state is owned by
// a single recorder goroutine fed over a channel, so progress writes never
// race with the fetch loop.
type Runner struct {
	source    MessageSource
	processor MessageProcessor
	store     JobStore
	log       *logrus.Logger

	// ProgressEvery controls how many messages pass between persisted
	// progress updates.
	ProgressEvery int
}

func NewRunner(source MessageSource, processor MessageProcessor, store JobStore, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		source:        source,
		processor:     processor,
		store:         store,
		log:           log,
		ProgressEvery: 10,
	}
}

// Run lists messages matching query, ingests each, and returns the completed
// job record. Per-message failures are tallied and do not stop the run;
// context cancellation or a listing failure marks the job failed.
func (r *Runner) Run(ctx context.Context, query string, maxMessages int64) (*models.SyncJob, error) {
	job := &models.SyncJob{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    models.SyncStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.CreateSyncJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create sync job: %w", err)
	}

	log := r.log.WithFields(logrus.Fields{"sync_job_id": job.ID, "query": query})
	log.Info("sync started")

	ids, err := r.source.ListMessageIDs(ctx, query, maxMessages)
	if err != nil {
		return r.fail(job, fmt.Errorf("failed to list messages: %w", err))
	}

	job.MessagesFound = len(ids)
	if err := r.store.UpdateSyncJobProgress(ctx, job); err != nil {
		return r.fail(job, fmt.Errorf("failed to record message count: %w", err))
	}
	log.WithField("messages_found", len(ids)).Info("listed messages")

	every := r.ProgressEvery
	if every < 1 {
		every = 1
	}

	events := make(chan progressEvent)
	recorderDone := make(chan struct{})
	go r.record(job, every, events, recorderDone)

	var runErr error
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		events <- r.processOne(ctx, id)

		if (i+1)%every == 0 {
			log.WithField("done", i+1).Debug("sync progress")
		}
	}
	close(events)
	<-recorderDone

	if runErr != nil {
		return r.fail(job, runErr)
	}

	now := time.Now().UTC()
	job.Status = models.SyncStatusCompleted
	job.CompletedAt = &now
	if err := r.store.CompleteSyncJob(context.WithoutCancel(ctx), job); err != nil {
		return job, fmt.Errorf("failed to complete sync job: %w", err)
	}

	log.WithFields(logrus.Fields{
		"processed": job.MessagesProcessed,
		"skipped":   job.MessagesSkipped,
		"failed":    job.MessagesFailed,
	}).Info("sync completed")
	return job, nil
}

// Status returns the current state of a sync job.
func (r *Runner) Status(ctx context.Context, jobID string) (*models.SyncJob, error) {
	return r.store.GetSyncJob(ctx, jobID)
}

func (r *Runner) processOne(ctx context.Context, messageID string) progressEvent {
	msg, err := r.source.GetMessage(ctx, messageID)
	if err != nil {
		r.log.WithError(err).WithField("gmail_message_id", messageID).Warn("failed to fetch message")
		return progressEvent{outcome: outcomeFailed, err: err}
	}

	_, err = r.processor.ProcessMessage(ctx, msg)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyIngested):
		return progressEvent{outcome: outcomeSkipped}
	case err != nil:
		r.log.WithError(err).WithField("gmail_message_id", messageID).Warn("failed to process message")
		return progressEvent{outcome: outcomeFailed, err: err}
	default:
		return progressEvent{outcome: outcomeProcessed}
	}
}

// record owns the job counters. It drains events, applies them, and
// periodically persists progress; the final write happens in Run once the
// channel closes.
func (r *Runner) record(job *models.SyncJob, every int, events <-chan progressEvent, done chan<- struct{}) {
	defer close(done)

	since := 0
	for ev := range events {
		switch ev.outcome {
		case outcomeProcessed:
			job.MessagesProcessed++
		case outcomeSkipped:
			job.MessagesSkipped++
		case outcomeFailed:
			job.MessagesFailed++
			if ev.err != nil {
				job.LastError = ev.err.Error()
			}
		}

		since++
		if since >= every {
			since = 0
			// Progress writes are advisory. Failures only log so a
			// transient database hiccup cannot abort the run.
			if err := r.store.UpdateSyncJobProgress(context.Background(), job); err != nil {
				r.log.WithError(err).WithField("sync_job_id", job.ID).Warn("failed to persist sync progress")
			}
		}
	}
}

func (r *Runner) fail(job *models.SyncJob, cause error) (*models.SyncJob, error) {
	now := time.Now().UTC()
	job.Status = models.SyncStatusFailed
	job.LastError = cause.Error()
	job.CompletedAt = &now

	if err := r.store.CompleteSyncJob(context.Background(), job); err != nil {
		r.log.WithError(err).WithField("sync_job_id", job.ID).Error("failed to record sync failure")
	}
	return job, cause
}

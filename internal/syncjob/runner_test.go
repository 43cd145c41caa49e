package syncjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
	"github.com/michaelroy-yvr/email-archive-2026/internal/pipeline"
)

type fakeSource struct {
	ids     []string
	listErr error
	getErrs map[string]error
}

func (s *fakeSource) ListMessageIDs(_ context.Context, _ string, maxMessages int64) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if int64(len(s.ids)) > maxMessages {
		return s.ids[:maxMessages], nil
	}
	return s.ids, nil
}

func (s *fakeSource) GetMessage(_ context.Context, id string) (*gmailapi.Message, error) {
	if err := s.getErrs[id]; err != nil {
		return nil, err
	}
	return &gmailapi.Message{Id: id}, nil
}

type fakeProcessor struct {
	errs      map[string]error
	processed []string
}

func (p *fakeProcessor) ProcessMessage(_ context.Context, msg *gmailapi.Message) (int64, error) {
	p.processed = append(p.processed, msg.Id)
	if err := p.errs[msg.Id]; err != nil {
		return 0, err
	}
	return 1, nil
}

type fakeJobStore struct {
	mu              sync.Mutex
	created         *models.SyncJob
	progressUpdates int
	completed       *models.SyncJob
	jobs            map[string]*models.SyncJob
}

func (s *fakeJobStore) CreateSyncJob(_ context.Context, job *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = job
	return nil
}

func (s *fakeJobStore) UpdateSyncJobProgress(_ context.Context, _ *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressUpdates++
	return nil
}

func (s *fakeJobStore) CompleteSyncJob(_ context.Context, job *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.completed = &copied
	return nil
}

func (s *fakeJobStore) GetSyncJob(_ context.Context, id string) (*models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.New("sync job not found")
	}
	return job, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRunnerRun(t *testing.T) {
	t.Run("tallies processed, skipped and failed", func(t *testing.T) {
		ids := []string{"m1", "m2", "m3", "m4"}
		source := &fakeSource{ids: ids}
		processor := &fakeProcessor{errs: map[string]error{
			"m2": pipeline.ErrAlreadyIngested,
			"m3": errors.New("parse failed"),
		}}
		store := &fakeJobStore{}

		r := NewRunner(source, processor, store, quietLogger())
		job, err := r.Run(context.Background(), "label:promotions", 100)
		require.NoError(t, err)

		assert.Equal(t, models.SyncStatusCompleted, job.Status)
		assert.Equal(t, 4, job.MessagesFound)
		assert.Equal(t, 2, job.MessagesProcessed)
		assert.Equal(t, 1, job.MessagesSkipped)
		assert.Equal(t, 1, job.MessagesFailed)
		assert.Contains(t, job.LastError, "parse failed")
		assert.NotNil(t, job.CompletedAt)
		assert.NotEmpty(t, job.ID)

		require.NotNil(t, store.completed)
		assert.Equal(t, models.SyncStatusCompleted, store.completed.Status)
		assert.Equal(t, ids, processor.processed)
	})

	t.Run("fetch failure counts as failed without stopping", func(t *testing.T) {
		source := &fakeSource{
			ids:     []string{"m1", "m2"},
			getErrs: map[string]error{"m1": errors.New("gmail 500")},
		}
		processor := &fakeProcessor{}
		store := &fakeJobStore{}

		r := NewRunner(source, processor, store, quietLogger())
		job, err := r.Run(context.Background(), "", 100)
		require.NoError(t, err)

		assert.Equal(t, 1, job.MessagesFailed)
		assert.Equal(t, 1, job.MessagesProcessed)
		assert.Equal(t, []string{"m2"}, processor.processed)
	})

	t.Run("listing failure fails the job", func(t *testing.T) {
		source := &fakeSource{listErr: errors.New("quota exceeded")}
		store := &fakeJobStore{}

		r := NewRunner(source, &fakeProcessor{}, store, quietLogger())
		job, err := r.Run(context.Background(), "", 100)
		require.Error(t, err)

		assert.Equal(t, models.SyncStatusFailed, job.Status)
		assert.Contains(t, job.LastError, "quota exceeded")
		require.NotNil(t, store.completed)
		assert.Equal(t, models.SyncStatusFailed, store.completed.Status)
	})

	t.Run("respects the message cap", func(t *testing.T) {
		source := &fakeSource{ids: []string{"m1", "m2", "m3"}}
		processor := &fakeProcessor{}

		r := NewRunner(source, processor, &fakeJobStore{}, quietLogger())
		job, err := r.Run(context.Background(), "", 2)
		require.NoError(t, err)

		assert.Equal(t, 2, job.MessagesFound)
		assert.Len(t, processor.processed, 2)
	})

	t.Run("cancelled context fails the job mid-run", func(t *testing.T) {
		ids := make([]string, 20)
		for i := range ids {
			ids[i] = fmt.Sprintf("m%d", i)
		}
		source := &fakeSource{ids: ids}
		store := &fakeJobStore{}

		ctx, cancel := context.WithCancel(context.Background())
		processor := &fakeProcessor{}
		r := NewRunner(source, &cancellingProcessor{inner: processor, cancel: cancel, after: 3}, store, quietLogger())

		job, err := r.Run(ctx, "", 100)
		require.ErrorIs(t, err, context.Canceled)

		assert.Equal(t, models.SyncStatusFailed, job.Status)
		assert.Equal(t, 3, job.MessagesProcessed)
		require.NotNil(t, store.completed)
		assert.Equal(t, models.SyncStatusFailed, store.completed.Status)
	})

	t.Run("persists intermediate progress", func(t *testing.T) {
		ids := make([]string, 25)
		for i := range ids {
			ids[i] = fmt.Sprintf("m%d", i)
		}
		store := &fakeJobStore{}

		r := NewRunner(&fakeSource{ids: ids}, &fakeProcessor{}, store, quietLogger())
		r.ProgressEvery = 10
		_, err := r.Run(context.Background(), "", 100)
		require.NoError(t, err)

		// one messages_found write plus two ten-message checkpoints
		assert.GreaterOrEqual(t, store.progressUpdates, 3)
	})
}

// cancellingProcessor cancels the run context after n successful messages.
type cancellingProcessor struct {
	inner  *fakeProcessor
	cancel context.CancelFunc
	after  int
	seen   int
}

func (p *cancellingProcessor) ProcessMessage(ctx context.Context, msg *gmailapi.Message) (int64, error) {
	id, err := p.inner.ProcessMessage(ctx, msg)
	p.seen++
	if p.seen == p.after {
		p.cancel()
	}
	return id, err
}

func TestRunnerStatus(t *testing.T) {
	store := &fakeJobStore{jobs: map[string]*models.SyncJob{
		"job-1": {ID: "job-1", Status: models.SyncStatusRunning, MessagesFound: 12},
	}}
	r := NewRunner(&fakeSource{}, &fakeProcessor{}, store, quietLogger())

	job, err := r.Status(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusRunning, job.Status)
	assert.Equal(t, 12, job.MessagesFound)

	_, err = r.Status(context.Background(), "missing")
	assert.Error(t, err)
}

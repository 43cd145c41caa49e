package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
)

// Store adapts the package-level query functions to the lookup-with-found
// shape the ingestion pipeline consumes.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetEmailIDByGmailID(ctx context.Context, gmailMessageID string) (int64, bool, error) {
	id, err := GetEmailIDByGmailID(ctx, s.pool, gmailMessageID)
	if errors.Is(err, ErrEmailNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *Store) GetOrganizationIDByDomain(ctx context.Context, domain string) (int64, bool, error) {
	id, err := GetOrganizationIDByDomain(ctx, s.pool, domain)
	if errors.Is(err, ErrOrganizationNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *Store) SaveEmail(ctx context.Context, parsed *models.ParsedMessage, organizationID *int64) (int64, error) {
	return SaveEmail(ctx, s.pool, parsed, organizationID)
}

func (s *Store) MarkEmailProcessed(ctx context.Context, emailID int64, rewrittenHTML string, imagesDownloaded bool, images []*models.Image) error {
	return MarkEmailProcessed(ctx, s.pool, emailID, rewrittenHTML, imagesDownloaded, images)
}

func (s *Store) CreateSyncJob(ctx context.Context, job *models.SyncJob) error {
	return CreateSyncJob(ctx, s.pool, job)
}

func (s *Store) UpdateSyncJobProgress(ctx context.Context, job *models.SyncJob) error {
	return UpdateSyncJobProgress(ctx, s.pool, job)
}

func (s *Store) CompleteSyncJob(ctx context.Context, job *models.SyncJob) error {
	return CompleteSyncJob(ctx, s.pool, job)
}

func (s *Store) GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error) {
	return GetSyncJob(ctx, s.pool, id)
}

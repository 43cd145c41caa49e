package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
)

// ErrEmailNotFound is returned when a requested email cannot be found.
var ErrEmailNotFound = errors.New("email not found")

// GetEmailIDByGmailID looks up the internal id of an email by its Gmail message id.
// This is the idempotency check the ingestion pipeline runs before any write.
func GetEmailIDByGmailID(ctx context.Context, pool *pgxpool.Pool, gmailMessageID string) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx, `
		SELECT id FROM emails WHERE gmail_message_id = $1
	`, gmailMessageID).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrEmailNotFound
	}

	if err != nil {
		return 0, fmt.Errorf("failed to look up email by gmail message id: %w", err)
	}

	return id, nil
}

// SaveEmail inserts the metadata-only row for a newly ingested message and
// returns its id. The rewritten HTML and image bookkeeping are filled in later
// by MarkEmailProcessed.
func SaveEmail(ctx context.Context, pool *pgxpool.Pool, parsed *models.ParsedMessage, organizationID *int64) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO emails (
			gmail_message_id,
			gmail_thread_id,
			subject,
			from_address,
			from_name,
			to_address,
			date_received,
			html_content,
			text_content,
			labels,
			has_images,
			organization_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12)
		RETURNING id
	`,
		parsed.GmailMessageID,
		parsed.GmailThreadID,
		parsed.Subject,
		parsed.FromAddress,
		parsed.FromName,
		parsed.ToAddress,
		parsed.DateReceived,
		parsed.HTMLContent,
		parsed.TextContent,
		parsed.Labels,
		parsed.HTMLContent != "",
		organizationID,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to save email: %w", err)
	}

	return id, nil
}

// MarkEmailProcessed records the outcome of image processing for an email: the
// image rows and the rewritten-HTML update are committed in a single
// transaction so the email row never claims success without its image rows.
func MarkEmailProcessed(ctx context.Context, pool *pgxpool.Pool, emailID int64, rewrittenHTML string, imagesDownloaded bool, images []*models.Image) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, img := range images {
		if err := insertImage(ctx, tx, emailID, img); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE emails
		SET rewritten_html_content = $1,
			images_downloaded = $2,
			image_download_attempts = image_download_attempts + 1,
			last_image_download_attempt = now(),
			updated_at = now()
		WHERE id = $3
	`, rewrittenHTML, imagesDownloaded, emailID)

	if err != nil {
		return fmt.Errorf("failed to update email after image processing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit image processing results: %w", err)
	}

	return nil
}

// GetEmailByID returns the full email row.
func GetEmailByID(ctx context.Context, pool *pgxpool.Pool, id int64) (*models.Email, error) {
	var email models.Email

	err := pool.QueryRow(ctx, `
		SELECT
			id,
			gmail_message_id,
			COALESCE(gmail_thread_id, ''),
			COALESCE(subject, ''),
			from_address,
			from_name,
			COALESCE(to_address, ''),
			date_received,
			COALESCE(html_content, ''),
			COALESCE(text_content, ''),
			labels,
			has_images,
			COALESCE(rewritten_html_content, ''),
			images_downloaded,
			image_download_attempts,
			last_image_download_attempt,
			organization_id
		FROM emails
		WHERE id = $1
	`, id).Scan(
		&email.ID,
		&email.GmailMessageID,
		&email.GmailThreadID,
		&email.Subject,
		&email.FromAddress,
		&email.FromName,
		&email.ToAddress,
		&email.DateReceived,
		&email.HTMLContent,
		&email.TextContent,
		&email.Labels,
		&email.HasImages,
		&email.RewrittenHTMLContent,
		&email.ImagesDownloaded,
		&email.ImageDownloadAttempts,
		&email.LastImageDownloadAttempt,
		&email.OrganizationID,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmailNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	return &email, nil
}

// Stats summarises the archive for operator tooling.
type Stats struct {
	TotalEmails  int64 `json:"total_emails"`
	TotalImages  int64 `json:"total_images"`
	FailedImages int64 `json:"failed_images"`
}

// GetStats returns archive-wide counts of emails and image downloads.
func GetStats(ctx context.Context, pool *pgxpool.Pool) (*Stats, error) {
	var stats Stats

	err := pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM emails),
			(SELECT COUNT(*) FROM images WHERE download_success),
			(SELECT COUNT(*) FROM images WHERE NOT download_success)
	`).Scan(&stats.TotalEmails, &stats.TotalImages, &stats.FailedImages)

	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &stats, nil
}

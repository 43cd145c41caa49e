package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
)

// insertImage writes one image row inside the given transaction. Rows are
// insert-only: re-ingestion of an email short-circuits before images are touched.
func insertImage(ctx context.Context, tx pgx.Tx, emailID int64, img *models.Image) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO images (
			email_id,
			original_url,
			local_path,
			file_size,
			mime_type,
			width,
			height,
			download_success,
			download_error,
			downloaded_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), CASE WHEN $8 THEN now() END)
	`,
		emailID,
		img.OriginalURL,
		img.LocalPath,
		img.FileSize,
		img.MimeType,
		img.Width,
		img.Height,
		img.DownloadSuccess,
		img.DownloadError,
	)

	if err != nil {
		return fmt.Errorf("failed to save image for email %d: %w", emailID, err)
	}

	return nil
}

// GetImagesForEmail returns all image rows recorded for an email.
func GetImagesForEmail(ctx context.Context, pool *pgxpool.Pool, emailID int64) ([]*models.Image, error) {
	rows, err := pool.Query(ctx, `
		SELECT
			id,
			email_id,
			original_url,
			COALESCE(local_path, ''),
			COALESCE(file_size, 0),
			COALESCE(mime_type, ''),
			COALESCE(width, 0),
			COALESCE(height, 0),
			download_success,
			COALESCE(download_error, ''),
			downloaded_at
		FROM images
		WHERE email_id = $1
		ORDER BY id
	`, emailID)

	if err != nil {
		return nil, fmt.Errorf("failed to get images: %w", err)
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(
			&img.ID,
			&img.EmailID,
			&img.OriginalURL,
			&img.LocalPath,
			&img.FileSize,
			&img.MimeType,
			&img.Width,
			&img.Height,
			&img.DownloadSuccess,
			&img.DownloadError,
			&img.DownloadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, &img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

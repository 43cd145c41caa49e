// Package pipeline sequences the ingestion of one Gmail message: parse,
// duplicate check, metadata persistence, image download, HTML rewrite, and
// the final durable update.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/michaelroy-yvr/email-archive-2026/internal/gmail"
	"github.com/michaelroy-yvr/email-archive-2026/internal/images"
	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
)

// ErrAlreadyIngested is returned together with the existing email id when a
// message has been archived before. Batch callers count these as skips, not
// failures.
var ErrAlreadyIngested = errors.New("email already ingested")

// Store is the durable-state dependency of the processor. Lookups report
// absence through the found flag rather than an error.
type Store interface {
	GetEmailIDByGmailID(ctx context.Context, gmailMessageID string) (id int64, found bool, err error)
	GetOrganizationIDByDomain(ctx context.Context, domain string) (id int64, found bool, err error)
	SaveEmail(ctx context.Context, parsed *models.ParsedMessage, organizationID *int64) (int64, error)
	MarkEmailProcessed(ctx context.Context, emailID int64, rewrittenHTML string, imagesDownloaded bool, images []*models.Image) error
}

// Downloader fetches the images referenced by an email's HTML.
type Downloader interface {
	DownloadEmailImages(ctx context.Context, emailID int64, htmlContent string) ([]images.FetchOutcome, error)
}

// Rewriter rewrites email HTML given an original-URL-to-local-path mapping.
type Rewriter interface {
	RewriteHTML(htmlContent string, imageMapping map[string]string) string
}

type Processor struct {
	store      Store
	downloader Downloader
	rewriter   Rewriter
	log        *logrus.Logger
}

func NewProcessor(store Store, downloader Downloader, rewriter Rewriter, log *logrus.Logger) *Processor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{
		store:      store,
		downloader: downloader,
		rewriter:   rewriter,
		log:        log,
	}
}

// ProcessMessage ingests one raw Gmail message and returns the archive email
// id. A previously ingested message returns its existing id together with
// ErrAlreadyIngested before anything is written, which makes the pipeline
// safely re-entrant. Parse failures propagate with no row created; per-image
// failures are recorded per URL and never fail the message.
func (p *Processor) ProcessMessage(ctx context.Context, msg *gmailapi.Message) (int64, error) {
	parsed, err := gmail.ParseMessage(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to parse message: %w", err)
	}

	log := p.log.WithField("gmail_message_id", parsed.GmailMessageID)

	if id, found, err := p.store.GetEmailIDByGmailID(ctx, parsed.GmailMessageID); err != nil {
		return 0, fmt.Errorf("failed duplicate check for message %s: %w", parsed.GmailMessageID, err)
	} else if found {
		log.WithField("email_id", id).Debug("email already archived")
		return id, ErrAlreadyIngested
	}

	organizationID := p.findOrganization(ctx, parsed.FromAddress)

	emailID, err := p.store.SaveEmail(ctx, parsed, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to save email %s: %w", parsed.GmailMessageID, err)
	}
	log = log.WithField("email_id", emailID)
	log.Info("saved email")

	if parsed.HTMLContent == "" {
		log.Debug("no HTML content, skipping image processing")
		return emailID, nil
	}

	outcomes, err := p.downloader.DownloadEmailImages(ctx, emailID, parsed.HTMLContent)
	if err != nil {
		return emailID, fmt.Errorf("image download interrupted for email %d: %w", emailID, err)
	}

	mapping := buildImageMapping(outcomes)
	rewritten := p.rewriter.RewriteHTML(parsed.HTMLContent, mapping)

	rows, succeeded, attempted := collectImageRows(outcomes)
	if err := p.store.MarkEmailProcessed(ctx, emailID, rewritten, succeeded == attempted, rows); err != nil {
		return emailID, fmt.Errorf("failed to record image processing for email %d: %w", emailID, err)
	}

	log.WithFields(logrus.Fields{"succeeded": succeeded, "attempted": attempted}).Info("email processed")
	return emailID, nil
}

// findOrganization attaches a known organization by sender domain. This is
// best-effort enrichment: lookup failures only log.
func (p *Processor) findOrganization(ctx context.Context, fromAddress string) *int64 {
	domain := extractDomain(fromAddress)
	if domain == "" {
		return nil
	}

	id, found, err := p.store.GetOrganizationIDByDomain(ctx, domain)
	if err != nil {
		p.log.WithError(err).WithField("domain", domain).Warn("organization lookup failed")
		return nil
	}
	if !found {
		return nil
	}
	return &id
}

// extractDomain returns the lowercased domain of an email address, or the
// empty string when there is none.
func extractDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at == -1 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}

// buildImageMapping maps original URLs to local paths for successful,
// non-skipped outcomes only.
func buildImageMapping(outcomes []images.FetchOutcome) map[string]string {
	mapping := make(map[string]string)
	for _, o := range outcomes {
		if o.Success && !o.Skipped {
			mapping[o.OriginalURL] = o.LocalPath
		}
	}
	return mapping
}

// collectImageRows converts outcomes into durable rows and tallies the
// success ratio. Skipped outcomes (tracking pixels) produce no row and are
// excluded from both sides of the ratio.
func collectImageRows(outcomes []images.FetchOutcome) (rows []*models.Image, succeeded, attempted int) {
	for _, o := range outcomes {
		if o.Skipped {
			continue
		}
		attempted++

		row := &models.Image{
			OriginalURL:     o.OriginalURL,
			DownloadSuccess: o.Success,
		}
		if o.Success {
			succeeded++
			row.LocalPath = o.LocalPath
			row.FileSize = o.FileSize
			row.MimeType = o.MimeType
			row.Width = o.Width
			row.Height = o.Height
		} else {
			row.DownloadError = o.Error
		}
		rows = append(rows, row)
	}
	return rows, succeeded, attempted
}

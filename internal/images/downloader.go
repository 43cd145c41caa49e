package images

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/michaelroy-yvr/email-archive-2026/internal/reliability"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMinSize    = 100 // bytes; anything smaller is treated as a tracking pixel
	defaultFetchDelay = 50 * time.Millisecond
	maxRedirects      = 5

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// FetchOutcome is the result of attempting to retrieve one image URL.
type FetchOutcome struct {
	OriginalURL string
	Success     bool
	// Skipped marks a download rejected after the fact (tracking pixel);
	// skipped outcomes are excluded from the success bookkeeping entirely.
	Skipped   bool
	Cached    bool
	LocalPath string
	FileSize  int64
	MimeType  string
	Width     int
	Height    int
	Error     string
}

// Downloader fetches remote images referenced by archived emails into a
// content-addressed on-disk cache, one directory per email.
type Downloader struct {
	// StorageRoot is the filesystem root; images live under StorageRoot/images.
	StorageRoot string
	// MinImageSize is the byte threshold below which a download is treated
	// as a tracking pixel and skipped.
	MinImageSize int
	// FetchDelay is the courtesy delay between successive fetches in a batch.
	FetchDelay time.Duration
	// Retry is the backoff policy for transient fetch failures.
	Retry reliability.RetryConfig

	client *http.Client
	log    *logrus.Logger

	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex
}

// NewDownloader creates a Downloader with production defaults.
func NewDownloader(storageRoot string, log *logrus.Logger) *Downloader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Downloader{
		StorageRoot:  storageRoot,
		MinImageSize: defaultMinSize,
		FetchDelay:   defaultFetchDelay,
		Retry:        reliability.DownloadRetryConfig(),
		client: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		log:       log,
		pathLocks: make(map[string]*sync.Mutex),
	}
}

// SetHTTPClient replaces the HTTP client, mostly for tests.
func (d *Downloader) SetHTTPClient(client *http.Client) {
	d.client = client
}

// DownloadEmailImages extracts all image URLs from the HTML and fetches them
// sequentially, in extraction order, with a small delay between requests.
// Per-URL failures are recorded in the outcomes, never returned as an error;
// the only error is a cancelled context, checked at the loop boundary.
func (d *Downloader) DownloadEmailImages(ctx context.Context, emailID int64, htmlContent string) ([]FetchOutcome, error) {
	if htmlContent == "" {
		return nil, nil
	}

	urls := ExtractImageURLs(htmlContent)
	d.log.WithFields(logrus.Fields{"email_id": emailID, "count": len(urls)}).Info("found image URLs in email")

	outcomes := make([]FetchOutcome, 0, len(urls))
	for i, imageURL := range urls {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcomes = append(outcomes, d.DownloadImage(ctx, emailID, imageURL))

		if i < len(urls)-1 && d.FetchDelay > 0 {
			select {
			case <-time.After(d.FetchDelay):
			case <-ctx.Done():
				return outcomes, ctx.Err()
			}
		}
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}
	d.log.WithFields(logrus.Fields{"email_id": emailID, "succeeded": succeeded, "attempted": len(outcomes)}).Info("finished downloading email images")

	return outcomes, nil
}

// DownloadImage fetches a single URL into the email's cache directory. The
// local filename is the md5 hex digest of the URL plus a whitelisted
// extension, so re-processing the same URL is idempotent: an existing file
// short-circuits the network fetch and the outcome is synthesized from disk.
func (d *Downloader) DownloadImage(ctx context.Context, emailID int64, imageURL string) FetchOutcome {
	emailDir := filepath.Join(d.StorageRoot, "images", strconv.FormatInt(emailID, 10))
	if err := os.MkdirAll(emailDir, 0o755); err != nil {
		return FetchOutcome{OriginalURL: imageURL, Error: fmt.Sprintf("failed to create image directory: %v", err)}
	}

	hash := md5.Sum([]byte(imageURL))
	filename := hex.EncodeToString(hash[:]) + "." + extensionFromURL(imageURL)
	localPath := filepath.Join(emailDir, filename)
	relativePath := path.Join(strconv.FormatInt(emailID, 10), filename)

	// Serializes the cache-check-then-write sequence for concurrent callers
	// racing on the same path. One message's URLs are fetched sequentially,
	// so this only matters when the caller parallelizes.
	unlock := d.lockPath(localPath)
	defer unlock()

	if info, err := os.Stat(localPath); err == nil {
		return d.outcomeFromCache(imageURL, localPath, relativePath, info)
	}

	log := d.log.WithFields(logrus.Fields{"email_id": emailID, "url": truncateURL(imageURL)})
	log.Debug("downloading image")

	var body []byte
	var contentType string
	retryCfg := d.Retry
	retryCfg.ShouldRetry = isRetryableDownloadError

	err := reliability.Retry(ctx, retryCfg, func() error {
		var fetchErr error
		body, contentType, fetchErr = d.fetch(ctx, imageURL)
		return fetchErr
	})
	if err != nil {
		log.WithError(err).Warn("image download failed")
		return FetchOutcome{OriginalURL: imageURL, Error: err.Error()}
	}

	if len(body) < d.MinImageSize {
		return FetchOutcome{
			OriginalURL: imageURL,
			Skipped:     true,
			Error:       "image too small (likely tracking pixel)",
		}
	}

	format, width, height, err := probeImage(body)
	if err != nil {
		return FetchOutcome{OriginalURL: imageURL, Error: "invalid image format: " + err.Error()}
	}

	if err := os.WriteFile(localPath, body, 0o644); err != nil {
		return FetchOutcome{OriginalURL: imageURL, Error: fmt.Sprintf("failed to write image file: %v", err)}
	}

	mimeType := contentType
	if mimeType == "" {
		mimeType = "image/" + format
	}

	return FetchOutcome{
		OriginalURL: imageURL,
		Success:     true,
		LocalPath:   relativePath,
		FileSize:    int64(len(body)),
		MimeType:    mimeType,
		Width:       width,
		Height:      height,
	}
}

// fetch performs one GET attempt and returns the body bytes and content type.
func (d *Downloader) fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", &httpStatusError{statusCode: resp.StatusCode, url: imageURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// outcomeFromCache synthesizes a success outcome from a previously
// downloaded file without touching the network.
func (d *Downloader) outcomeFromCache(imageURL, localPath, relativePath string, info os.FileInfo) FetchOutcome {
	outcome := FetchOutcome{
		OriginalURL: imageURL,
		Success:     true,
		Cached:      true,
		LocalPath:   relativePath,
		FileSize:    info.Size(),
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		outcome.MimeType = "image/" + strings.TrimPrefix(path.Ext(relativePath), ".")
		return outcome
	}

	if format, width, height, err := probeImage(data); err == nil {
		outcome.MimeType = "image/" + format
		outcome.Width = width
		outcome.Height = height
	} else {
		outcome.MimeType = "image/" + strings.TrimPrefix(path.Ext(relativePath), ".")
	}

	return outcome
}

// ImageStats summarizes the on-disk cache for one email.
type ImageStats struct {
	Count       int
	TotalSize   int64
	AverageSize int64
}

// Stats reads the cache directory of an email. A missing directory is an
// empty cache, not an error.
func (d *Downloader) Stats(emailID int64) ImageStats {
	emailDir := filepath.Join(d.StorageRoot, "images", strconv.FormatInt(emailID, 10))

	entries, err := os.ReadDir(emailDir)
	if err != nil {
		return ImageStats{}
	}

	var stats ImageStats
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Count++
		stats.TotalSize += info.Size()
	}
	if stats.Count > 0 {
		stats.AverageSize = stats.TotalSize / int64(stats.Count)
	}

	return stats
}

func (d *Downloader) lockPath(localPath string) func() {
	d.mu.Lock()
	lock, ok := d.pathLocks[localPath]
	if !ok {
		lock = &sync.Mutex{}
		d.pathLocks[localPath] = lock
	}
	d.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// httpStatusError reports a non-success HTTP status. Server-side statuses are
// considered transient; client errors are not retried.
type httpStatusError struct {
	statusCode int
	url        string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("request for %s failed with status %d", truncateURL(e.url), e.statusCode)
}

func isRetryableDownloadError(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.statusCode >= 500 || statusErr.statusCode == http.StatusTooManyRequests
	}
	// Everything else reaching the retry loop is a transport-level failure.
	return true
}

var allowedExtensions = map[string]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
	"bmp":  "bmp",
	"svg":  "svg",
}

// extensionFromURL derives the cache file extension from the URL path,
// defaulting to jpg when the path carries no recognized image extension.
// Only whitelisted extensions ever reach the filesystem.
func extensionFromURL(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "jpg"
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(parsed.Path), "."))
	if normalized, ok := allowedExtensions[ext]; ok {
		return normalized
	}
	return "jpg"
}

// probeImage validates that the bytes decode as an image and returns the
// format name and pixel dimensions. SVG is vector content the stdlib cannot
// decode; it is recognized by sniffing and stored without dimensions.
func probeImage(data []byte) (format string, width, height int, err error) {
	if looksLikeSVG(data) {
		return "svg+xml", 0, 0, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, err
	}

	return format, cfg.Width, cfg.Height, nil
}

func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg"))
}

func truncateURL(imageURL string) string {
	if len(imageURL) > 80 {
		return imageURL[:80] + "..."
	}
	return imageURL
}

package models

import "time"

// ParsedMessage holds the normalized fields extracted from a raw Gmail message.
// It is transient: the pipeline turns it into an Email row.
type ParsedMessage struct {
	GmailMessageID string    `json:"gmail_message_id"`
	GmailThreadID  string    `json:"gmail_thread_id"`
	Subject        string    `json:"subject"`
	FromAddress    string    `json:"from_address"`
	FromName       string    `json:"from_name"`
	ToAddress      string    `json:"to_address"`
	DateReceived   time.Time `json:"date_received"`
	HTMLContent    string    `json:"html_content,omitempty"`
	TextContent    string    `json:"text_content,omitempty"`
	Labels         []string  `json:"labels"`
}

type Email struct {
	ID                       int64      `json:"id"`
	GmailMessageID           string     `json:"gmail_message_id"`
	GmailThreadID            string     `json:"gmail_thread_id"`
	Subject                  string     `json:"subject"`
	FromAddress              string     `json:"from_address"`
	FromName                 string     `json:"from_name"`
	ToAddress                string     `json:"to_address"`
	DateReceived             *time.Time `json:"date_received"`
	HTMLContent              string     `json:"html_content,omitempty"`
	TextContent              string     `json:"text_content,omitempty"`
	Labels                   []string   `json:"labels"`
	HasImages                bool       `json:"has_images"`
	RewrittenHTMLContent     string     `json:"rewritten_html_content,omitempty"`
	ImagesDownloaded         bool       `json:"images_downloaded"`
	ImageDownloadAttempts    int        `json:"image_download_attempts"`
	LastImageDownloadAttempt *time.Time `json:"last_image_download_attempt,omitempty"`
	OrganizationID           *int64     `json:"organization_id,omitempty"`
}

type Image struct {
	ID              int64      `json:"id"`
	EmailID         int64      `json:"email_id"`
	OriginalURL     string     `json:"original_url"`
	LocalPath       string     `json:"local_path,omitempty"`
	FileSize        int64      `json:"file_size"`
	MimeType        string     `json:"mime_type,omitempty"`
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	DownloadSuccess bool       `json:"download_success"`
	DownloadError   string     `json:"download_error,omitempty"`
	DownloadedAt    *time.Time `json:"downloaded_at,omitempty"`
}

type Organization struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	EmailDomain string `json:"email_domain"`
	Type        string `json:"type,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// SyncJob is the durable progress record for one batch sync run.
type SyncJob struct {
	ID                string     `json:"id"`
	Query             string     `json:"query"`
	Status            string     `json:"status"`
	MessagesFound     int        `json:"messages_found"`
	MessagesProcessed int        `json:"messages_processed"`
	MessagesSkipped   int        `json:"messages_skipped"`
	MessagesFailed    int        `json:"messages_failed"`
	LastError         string     `json:"last_error,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Sync job states.
const (
	SyncStatusRunning   = "running"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

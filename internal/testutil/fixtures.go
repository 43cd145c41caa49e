package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
)

// NewParsedMessage returns a parsed message with sensible defaults that
// individual tests override as needed.
func NewParsedMessage(gmailMessageID string) *models.ParsedMessage {
	return &models.ParsedMessage{
		GmailMessageID: gmailMessageID,
		GmailThreadID:  "thread-" + gmailMessageID,
		Subject:        "Test subject",
		FromAddress:    "sender@example.com",
		FromName:       "Sender",
		ToAddress:      "me@example.com",
		DateReceived:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		HTMLContent:    `<p>Hello <img src="https://cdn.example.com/a.png"></p>`,
		TextContent:    "Hello",
		Labels:         []string{"INBOX"},
	}
}

// SeedOrganization inserts an organization row and returns its id.
func SeedOrganization(t *testing.T, pool *pgxpool.Pool, name, domain string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO organizations (name, email_domain) VALUES ($1, $2) RETURNING id`,
		name, domain,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed organization: %v", err)
	}
	return id
}

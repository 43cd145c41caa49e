package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func encodeBody(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func newTestMessage(payload *gmail.MessagePart) *gmail.Message {
	return &gmail.Message{
		Id:           "msg-1",
		ThreadId:     "thread-1",
		InternalDate: 1700000000000,
		LabelIds:     []string{"INBOX", "CATEGORY_PROMOTIONS"},
		Payload:      payload,
	}
}

func TestParseMessage(t *testing.T) {
	t.Run("parses multipart message with html and text", func(t *testing.T) {
		msg := newTestMessage(&gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Weekly deals"},
				{Name: "From", Value: `"Acme Store" <deals@acme.com>`},
				{Name: "To", Value: "me@example.com"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: encodeBody("plain body")},
				},
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: encodeBody("<p>html body</p>")},
				},
			},
		})

		parsed, err := ParseMessage(msg)
		require.NoError(t, err)

		assert.Equal(t, "msg-1", parsed.GmailMessageID)
		assert.Equal(t, "thread-1", parsed.GmailThreadID)
		assert.Equal(t, "Weekly deals", parsed.Subject)
		assert.Equal(t, "deals@acme.com", parsed.FromAddress)
		assert.Equal(t, "Acme Store", parsed.FromName)
		assert.Equal(t, "me@example.com", parsed.ToAddress)
		assert.Equal(t, "plain body", parsed.TextContent)
		assert.Equal(t, "<p>html body</p>", parsed.HTMLContent)
		assert.Equal(t, []string{"INBOX", "CATEGORY_PROMOTIONS"}, parsed.Labels)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), parsed.DateReceived)
	})

	t.Run("recurses into nested multipart wrappers", func(t *testing.T) {
		msg := newTestMessage(&gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{
							MimeType: "multipart/related",
							Parts: []*gmail.MessagePart{
								{
									MimeType: "text/html",
									Body:     &gmail.MessagePartBody{Data: encodeBody("<b>deep</b>")},
								},
							},
						},
					},
				},
			},
		})

		parsed, err := ParseMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, "<b>deep</b>", parsed.HTMLContent)
		assert.Empty(t, parsed.TextContent)
	})

	t.Run("first matching part wins", func(t *testing.T) {
		msg := newTestMessage(&gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: encodeBody("first")},
				},
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: encodeBody("second")},
				},
			},
		})

		parsed, err := ParseMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, "first", parsed.HTMLContent)
	})

	t.Run("uses top-level body when there are no parts", func(t *testing.T) {
		msg := newTestMessage(&gmail.MessagePart{
			MimeType: "text/html",
			Body:     &gmail.MessagePartBody{Data: encodeBody("<p>top</p>")},
		})

		parsed, err := ParseMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, "<p>top</p>", parsed.HTMLContent)
		assert.Empty(t, parsed.TextContent)
	})

	t.Run("top-level non-html body becomes text content", func(t *testing.T) {
		msg := newTestMessage(&gmail.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail.MessagePartBody{Data: encodeBody("just text")},
		})

		parsed, err := ParseMessage(msg)
		require.NoError(t, err)
		assert.Empty(t, parsed.HTMLContent)
		assert.Equal(t, "just text", parsed.TextContent)
	})

	t.Run("header lookup is case-insensitive", func(t *testing.T) {
		msg := newTestMessage(&gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "SUBJECT", Value: "shouting"},
				{Name: "from", Value: "quiet@example.com"},
			},
		})

		parsed, err := ParseMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, "shouting", parsed.Subject)
		assert.Equal(t, "quiet@example.com", parsed.FromAddress)
		assert.Empty(t, parsed.FromName)
	})

	t.Run("fails on malformed base64 body", func(t *testing.T) {
		msg := newTestMessage(&gmail.MessagePart{
			MimeType: "text/html",
			Body:     &gmail.MessagePartBody{Data: "!!! not base64 !!!"},
		})

		_, err := ParseMessage(msg)
		assert.Error(t, err)
	})

	t.Run("fails on nil payload", func(t *testing.T) {
		_, err := ParseMessage(&gmail.Message{Id: "x"})
		assert.Error(t, err)
	})
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		address string
		display string
	}{
		{"quoted display name", `"Jane Doe" <jane@example.com>`, "jane@example.com", "Jane Doe"},
		{"unquoted display name", "Jane Doe <jane@example.com>", "jane@example.com", "Jane Doe"},
		{"bare address", "jane@example.com", "jane@example.com", ""},
		{"empty header", "", "", ""},
		{"unclosed bracket keeps whole string", "Jane <jane@example.com", "Jane <jane@example.com", "Jane"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.address, parseAddress(tt.from))
			assert.Equal(t, tt.display, parseDisplayName(tt.from))
		})
	}
}

func TestDecodeBody(t *testing.T) {
	t.Run("decodes unpadded url-safe base64", func(t *testing.T) {
		out, err := decodeBody(base64.RawURLEncoding.EncodeToString([]byte("hello")))
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("decodes padded url-safe base64", func(t *testing.T) {
		out, err := decodeBody(base64.URLEncoding.EncodeToString([]byte("hello")))
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})
}

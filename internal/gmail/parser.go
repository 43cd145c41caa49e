package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
)

// ParseMessage extracts the normalized archive fields from a raw Gmail API
// message. A malformed body payload fails the whole message: the caller must
// not persist a partial parse.
func ParseMessage(msg *gmail.Message) (*models.ParsedMessage, error) {
	if msg == nil || msg.Payload == nil {
		return nil, fmt.Errorf("gmail message has no payload")
	}

	from := headerValue(msg.Payload.Headers, "From")

	parsed := &models.ParsedMessage{
		GmailMessageID: msg.Id,
		GmailThreadID:  msg.ThreadId,
		Subject:        headerValue(msg.Payload.Headers, "Subject"),
		FromAddress:    parseAddress(from),
		FromName:       parseDisplayName(from),
		ToAddress:      headerValue(msg.Payload.Headers, "To"),
		DateReceived:   time.UnixMilli(msg.InternalDate).UTC(),
		Labels:         msg.LabelIds,
	}
	if parsed.Labels == nil {
		parsed.Labels = []string{}
	}

	if err := extractBodies(msg.Payload, parsed); err != nil {
		return nil, err
	}

	return parsed, nil
}

// headerValue returns the first header matching name, case-insensitively.
func headerValue(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseAddress pulls the address out of a `"Display Name" <addr>` From header,
// or returns the whole string when there are no angle brackets.
func parseAddress(from string) string {
	if from == "" {
		return ""
	}
	open := strings.Index(from, "<")
	if open == -1 {
		return from
	}
	close := strings.Index(from[open:], ">")
	if close == -1 {
		return from
	}
	return from[open+1 : open+close]
}

// parseDisplayName returns the quoted-stripped text before the angle bracket,
// or the empty string for a bare address.
func parseDisplayName(from string) string {
	open := strings.Index(from, "<")
	if open <= 0 {
		return ""
	}
	name := strings.TrimSpace(from[:open])
	return strings.ReplaceAll(name, `"`, "")
}

// extractBodies walks the MIME part tree depth-first, taking the first
// text/html and the first text/plain leaf found. A message with no parts may
// carry its body directly on the payload, typed by the payload's mimeType.
func extractBodies(payload *gmail.MessagePart, parsed *models.ParsedMessage) error {
	if len(payload.Parts) > 0 {
		return walkParts(payload.Parts, parsed)
	}

	if payload.Body != nil && payload.Body.Data != "" {
		content, err := decodeBody(payload.Body.Data)
		if err != nil {
			return err
		}
		if payload.MimeType == "text/html" {
			parsed.HTMLContent = content
		} else {
			parsed.TextContent = content
		}
	}

	return nil
}

func walkParts(parts []*gmail.MessagePart, parsed *models.ParsedMessage) error {
	for _, part := range parts {
		if part == nil {
			continue
		}

		switch {
		case part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "":
			if parsed.HTMLContent == "" {
				content, err := decodeBody(part.Body.Data)
				if err != nil {
					return err
				}
				parsed.HTMLContent = content
			}
		case part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "":
			if parsed.TextContent == "" {
				content, err := decodeBody(part.Body.Data)
				if err != nil {
					return err
				}
				parsed.TextContent = content
			}
		case len(part.Parts) > 0:
			if err := walkParts(part.Parts, parsed); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeBody decodes Gmail's URL-safe base64 body data. Some clients pad,
// some don't, so try the raw alphabet first and fall back.
func decodeBody(data string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err == nil {
		return string(decoded), nil
	}

	decoded, err = base64.URLEncoding.DecodeString(data)
	if err == nil {
		return string(decoded), nil
	}

	if pad := len(data) % 4; pad != 0 {
		padded := data + strings.Repeat("=", 4-pad)
		if decoded, err2 := base64.URLEncoding.DecodeString(padded); err2 == nil {
			return string(decoded), nil
		}
	}

	return "", fmt.Errorf("failed to decode message body: %w", err)
}

package gmail

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const gmailUser = "me"

// Client is a thin wrapper around the Gmail API for listing and fetching
// messages. Obtaining OAuth credentials is the caller's problem; the client
// only consumes a ready-to-use authenticated HTTP client.
type Client struct {
	service *gmail.Service
}

// NewClient builds a Client from an OAuth-authenticated HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Client{service: service}, nil
}

// NewClientFromService wraps an existing Gmail service, mostly for tests.
func NewClientFromService(service *gmail.Service) *Client {
	return &Client{service: service}
}

// ListMessageIDs returns up to maxMessages message ids matching the Gmail
// search query, paging through results as needed.
func (c *Client) ListMessageIDs(ctx context.Context, query string, maxMessages int64) ([]string, error) {
	var ids []string
	pageToken := ""

	for int64(len(ids)) < maxMessages {
		call := c.service.Users.Messages.List(gmailUser).
			Q(query).
			MaxResults(min(maxMessages-int64(len(ids)), 500)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}

		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}

	if int64(len(ids)) > maxMessages {
		ids = ids[:maxMessages]
	}

	return ids, nil
}

// GetMessage fetches the full message, including the MIME part tree.
func (c *Client) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	msg, err := c.service.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

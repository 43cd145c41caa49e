package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// NewAuthenticatedClient builds an OAuth HTTP client from an installed-app
// credentials file and a previously stored token file. Obtaining the initial
// token (the browser consent dance) is out of scope; run it once with any
// standard Gmail OAuth helper and point GMAIL_TOKEN_PATH at the result.
func NewAuthenticatedClient(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	credentials, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(credentials, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	token, err := loadToken(tokenPath)
	if err != nil {
		return nil, err
	}

	return oauthConfig.Client(ctx, token), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return token, nil
}

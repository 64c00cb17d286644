package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultAccount is the account name used when none is configured.
const DefaultAccount = "default"

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateAccountName rejects names that are unsafe as part of a file name.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, '-' and '_' are allowed", account)
	}
	return nil
}

// ServiceAccountClient returns an HTTP client authorized as the service
// account described by keyJSON.
func ServiceAccountClient(ctx context.Context, keyJSON []byte, scopes ...string) (*http.Client, error) {
	if len(keyJSON) == 0 {
		return nil, errors.New("service account key is empty")
	}
	creds, err := google.CredentialsFromJSON(ctx, keyJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	return newHTTPClient(ctx, creds.TokenSource), nil
}

// OAuthConfig builds the installed-app OAuth configuration from a client
// secret JSON document as downloaded from the Google Cloud console.
func OAuthConfig(clientSecretJSON []byte, scopes ...string) (*oauth2.Config, error) {
	if len(clientSecretJSON) == 0 {
		return nil, errors.New("OAuth client secret is empty")
	}
	if len(scopes) == 0 {
		scopes = GmailScopes
	}
	conf, err := google.ConfigFromJSON(clientSecretJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OAuth client secret: %w", err)
	}
	return conf, nil
}

// AuthURL returns the URL the user visits to grant access. Offline access
// and forced consent make Google return a refresh token every time.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// newHTTPClient returns an OAuth2 HTTP client forced onto HTTP/1.1, which
// avoids sporadic HTTP/2 stream errors from the Google front ends.
func newHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   &http.Transport{ForceAttemptHTTP2: false, Proxy: http.ProxyFromEnvironment},
		},
	}
}

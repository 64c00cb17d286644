package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no cached token exists for an account.
var ErrNoToken = errors.New("no cached Google OAuth token")

// TokenStore keeps user OAuth tokens on disk, one file per account.
type TokenStore struct {
	dir  string
	conf *oauth2.Config
}

// NewTokenStore returns a store rooted at dir. An empty dir selects
// <user cache dir>/leadflow.
func NewTokenStore(dir string, conf *oauth2.Config) *TokenStore {
	if dir == "" {
		dir = defaultTokenDir()
	}
	return &TokenStore{dir: dir, conf: conf}
}

func defaultTokenDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "leadflow")
}

// Path returns the token file of account.
func (s *TokenStore) Path(account string) string {
	return filepath.Join(s.dir, "google-"+account+".token")
}

// Has reports whether a token file exists for account.
func (s *TokenStore) Has(account string) bool {
	if validateAccountName(account) != nil {
		return false
	}
	_, err := os.Stat(s.Path(account))
	return err == nil
}

// Load reads the cached token of account.
func (s *TokenStore) Load(account string) (*oauth2.Token, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(account))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w for account %s; run `leadflow auth --account %s`", ErrNoToken, account, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", s.Path(account), err)
	}
	return &tok, nil
}

// Save writes tok as the cached token of account.
func (s *TokenStore) Save(account string, tok *oauth2.Token) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(s.Path(account), data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Exchange trades an authorization code for a token and caches it.
func (s *TokenStore) Exchange(ctx context.Context, account, code string) error {
	if s.conf == nil {
		return errors.New("token store has no OAuth configuration")
	}
	tok, err := s.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if tok.RefreshToken == "" {
		return errors.New("Google returned no refresh token; revoke the app's access and authorize again")
	}
	return s.Save(account, tok)
}

// TokenSource returns a token source for account that refreshes the cached
// token when it expires and writes refreshed tokens back to disk.
func (s *TokenStore) TokenSource(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if s.conf == nil {
		return nil, errors.New("token store has no OAuth configuration")
	}
	tok, err := s.Load(account)
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{
		base:    s.conf.TokenSource(ctx, tok),
		store:   s,
		account: account,
		last:    tok.AccessToken,
	}, nil
}

// HTTPClient returns an HTTP client authorized as account.
func (s *TokenStore) HTTPClient(ctx context.Context, account string) (*http.Client, error) {
	ts, err := s.TokenSource(ctx, account)
	if err != nil {
		return nil, err
	}
	return newHTTPClient(ctx, ts), nil
}

// persistingTokenSource saves every newly minted access token.
type persistingTokenSource struct {
	base    oauth2.TokenSource
	store   *TokenStore
	account string

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		// A failed write only costs an extra refresh next run.
		_ = p.store.Save(p.account, tok)
	}
	return tok, nil
}

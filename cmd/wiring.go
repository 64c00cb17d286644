package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/leadflow/internal/automation"
	"github.com/teemow/leadflow/internal/config"
	"github.com/teemow/leadflow/internal/gmail"
	"github.com/teemow/leadflow/internal/google"
	"github.com/teemow/leadflow/internal/instrumentation"
	"github.com/teemow/leadflow/internal/logging"
	"github.com/teemow/leadflow/internal/sheets"
	"github.com/teemow/leadflow/internal/templates"
)

// errMailDisabled is returned by the mail sender of a dry run.
var errMailDisabled = errors.New("mail is disabled for dry runs")

// loadSettings loads the config file and builds the logger from the
// persistent flags.
func loadSettings(w io.Writer) (*config.Config, *slog.Logger, error) {
	logger, err := newLogger(w)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger, nil
}

func newLogger(w io.Writer) (*slog.Logger, error) {
	return logging.New(w, logFormat, debugMode)
}

// runnerOptions selects what buildRunner wires.
type runnerOptions struct {
	// dryRun replaces the Gmail client with a sender that refuses to send,
	// so no OAuth token is needed.
	dryRun  bool
	metrics *instrumentation.Metrics
}

// buildRunner wires the Sheets store, the Gmail sender and the templates
// into an automation runner.
func buildRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runnerOptions) (*automation.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	renderer, err := templates.NewRenderer(cfg.Templates)
	if err != nil {
		return nil, err
	}

	store, err := newSheetStore(ctx, cfg, opts.metrics)
	if err != nil {
		return nil, err
	}

	var mailer automation.MailSender = refusingMailer{}
	if !opts.dryRun {
		mailer, err = newMailer(ctx, cfg, opts.metrics)
		if err != nil {
			return nil, err
		}
	}

	return automation.NewRunner(automation.Config{
		Store:      store,
		Mailer:     mailer,
		Templates:  renderer,
		Columns:    cfg.Sheet.Columns,
		DateLayout: cfg.Sheet.DateLayout,
		AgentEmail: cfg.Agent.Email,
		Location:   loc,
		Logger:     logger,
		Metrics:    opts.metrics,
	})
}

func newSheetStore(ctx context.Context, cfg *config.Config, metrics *instrumentation.Metrics) (*sheets.Client, error) {
	key, err := cfg.ServiceAccountKey()
	if err != nil {
		return nil, err
	}
	httpClient, err := google.ServiceAccountClient(ctx, key, google.SheetsScopes...)
	if err != nil {
		return nil, err
	}
	return sheets.NewClient(ctx, cfg.Sheet.ID, cfg.Sheet.Worksheet,
		[]option.ClientOption{option.WithHTTPClient(httpClient)},
		sheets.WithMetrics(metrics),
	)
}

func newMailer(ctx context.Context, cfg *config.Config, metrics *instrumentation.Metrics) (*gmail.Client, error) {
	tokens, _, err := newTokenStore(cfg)
	if err != nil {
		return nil, err
	}
	httpClient, err := tokens.HTTPClient(ctx, cfg.Google.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize Gmail account %q: %w", cfg.Google.Account, err)
	}
	return gmail.NewClient(ctx,
		[]option.ClientOption{option.WithHTTPClient(httpClient)},
		gmail.WithFrom(fromAddress(cfg.Agent)),
		gmail.WithMetrics(metrics),
	)
}

// newTokenStore returns the Gmail token cache and its OAuth configuration.
func newTokenStore(cfg *config.Config) (*google.TokenStore, *oauth2.Config, error) {
	secret, err := cfg.ClientSecretJSON()
	if err != nil {
		return nil, nil, err
	}
	conf, err := google.OAuthConfig(secret, google.GmailScopes...)
	if err != nil {
		return nil, nil, err
	}
	return google.NewTokenStore(cfg.Google.TokenDir, conf), conf, nil
}

// fromAddress formats the From header of lead mail.
func fromAddress(agent config.AgentConfig) string {
	if agent.Email == "" {
		return ""
	}
	addr := mail.Address{Name: agent.Name, Address: agent.Email}
	return addr.String()
}

type refusingMailer struct{}

func (refusingMailer) Send(context.Context, string, string, string) error {
	return errMailDisabled
}

// newProvider creates the instrumentation provider for a command.
func newProvider(ctx context.Context) (*instrumentation.Provider, error) {
	instrCfg := instrumentation.DefaultConfig()
	instrCfg.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	return provider, nil
}

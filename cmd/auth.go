package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/leadflow/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		account string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize leadflow to send mail from your Gmail account",
		Long: `Run the OAuth flow for the Gmail account lead mail is sent from. Open the
printed URL, grant access and paste the authorization code back. The token
is cached under the user cache directory and refreshed automatically.

The OAuth client secret is read from CLIENT_SECRET, CLIENT_SECRET_FILE or
google.client_secret in the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runAuth(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), account, force)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Google account name to authorize (default: google.account from config, 'default')")
	cmd.Flags().BoolVar(&force, "force", false, "Authorize again even if a token is cached")
	return cmd
}

func runAuth(ctx context.Context, in io.Reader, out io.Writer, account string, force bool) error {
	cfg, _, err := loadSettings(out)
	if err != nil {
		return err
	}
	if account == "" {
		account = cfg.Google.Account
	}

	tokens, conf, err := newTokenStore(cfg)
	if err != nil {
		return err
	}
	if tokens.Has(account) && !force {
		fmt.Fprintf(out, "Account %q is already authorized (%s). Use --force to authorize again.\n", account, tokens.Path(account))
		return nil
	}

	fmt.Fprintf(out, "Visit this URL to authorize account %q:\n\n%s\n\n", account, google.AuthURL(conf, uuid.NewString()))
	fmt.Fprint(out, "Enter the authorization code: ")

	code, err := readCode(in)
	if err != nil {
		return err
	}
	if err := tokens.Exchange(ctx, account, code); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", tokens.Path(account))
	return nil
}

func readCode(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read authorization code: %w", err)
		}
		return "", errors.New("no authorization code entered")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return "", errors.New("no authorization code entered")
	}
	return code, nil
}

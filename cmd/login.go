package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aareon/rtv/internal/config"
	"github.com/Aareon/rtv/internal/oauth"
	"github.com/Aareon/rtv/internal/reddit"
	"github.com/Aareon/rtv/internal/terminal"
)

// newSession wires a reddit client, the terminal frontend and the
// authenticator together from the loaded config.
func newSession(cfg *config.Config, logger *slog.Logger) (*reddit.Client, *oauth.Authenticator) {
	term := terminal.New(logger, terminal.Options{
		ForceTerminalBrowser: cfg.ForceTerminalBrowser,
	})
	client := reddit.NewClient(reddit.ClientConfig{
		UserAgent: userAgent(),
		Logger:    logger,
	})
	return client, oauth.NewAuthenticator(client, term, cfg, logger)
}

func newLoginCmd() *cobra.Command {
	var temporary bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize this terminal session against reddit",
		Long: `Obtain OAuth2 credentials for the reddit API.

With a cached refresh token the session is renewed silently. Otherwise a
browser is opened for the authorization handshake; on graphical desktops
this is the default browser, on headless machines a terminal browser such
as elinks, lynx or w3m.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if temporary {
				cfg.Persistent = false
			}

			logger := newLogger()
			client, auth := newSession(cfg, logger)
			defer auth.Close()

			ctx := context.Background()
			err = auth.Authorize(ctx)
			if errors.Is(err, oauth.ErrInvalidRefreshToken) {
				// The cached token was revoked and has been purged; fall
				// back to the interactive flow.
				err = auth.Authorize(ctx)
			}
			if err != nil {
				return err
			}

			if client.IsAuthenticated() {
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", client.UserName())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&temporary, "temporary", false, "Do not persist the refresh token beyond this run")
	return cmd
}

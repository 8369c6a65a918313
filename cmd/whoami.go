package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aareon/rtv/internal/oauth"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the reddit account this session is authorized as",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.RefreshToken == "" {
				return errors.New("not logged in, run \"rtv login\" first")
			}

			logger := newLogger()
			client, auth := newSession(cfg, logger)
			defer auth.Close()

			ctx := context.Background()
			if err := auth.Authorize(ctx); err != nil {
				if errors.Is(err, oauth.ErrInvalidRefreshToken) {
					return errors.New("the cached credentials were revoked, run \"rtv login\" again")
				}
				return err
			}

			account, err := client.Me(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", account.Name)
			fmt.Fprintf(out, "  link karma:    %d\n", account.LinkKarma)
			fmt.Fprintf(out, "  comment karma: %d\n", account.CommentKarma)
			return nil
		},
	}
}

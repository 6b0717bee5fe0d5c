package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxtriage/internal/google"
)

func newAuthCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize inboxtriage to read and label your Gmail messages",
		Long: `Authorize inboxtriage with the OAuth client secret in
<credentials-dir>/credentials.json (a "Desktop app" client downloaded from the
Google Cloud console).

The command prints a consent URL. After approving, copy the "code" parameter
from the address the browser is redirected to and paste it here, or pass it
with --code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			conf, err := google.LoadConfig(a.cfg.ClientSecretPath())
			if err != nil {
				return err
			}
			tokens, err := a.tokenStore()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if code == "" {
				fmt.Fprintf(out, "Open this URL in your browser and grant access:\n\n  %s\n\n", google.AuthURL(conf))
				fmt.Fprint(out, "Paste the authorization code: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				code = strings.TrimSpace(line)
			}
			if code == "" {
				return fmt.Errorf("no authorization code given")
			}

			if _, err := google.Exchange(ctx, conf, tokens, code); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token saved to %s\n", tokens.Location())
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the consent redirect")
	return cmd
}

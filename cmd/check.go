package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify credentials and the Ollama model without touching Gmail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cmd, map[string]string{
				"oracle.model": "model",
				"oracle.url":   "oracle-url",
			})
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			tokens, err := a.tokenStore()
			if err != nil {
				return err
			}
			report := a.preflight(ctx, tokens, a.oracleClient())

			out := cmd.OutOrStdout()
			for _, res := range report.Results {
				mark := "ok"
				if !res.OK {
					mark = "FAIL"
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", mark, res.Name, res.Message)
			}
			return report.Err()
		},
	}

	cmd.Flags().String("model", "", "Ollama model name")
	cmd.Flags().String("oracle-url", "", "Ollama base URL")
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/go-while/go-homepage/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func genkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Print a new random session secret",
		Long: `Print a new random session secret, hex encoded.

Store it in HOMEPAGE_SESSION_SECRET (or .env). Changing the secret
invalidates every session cookie already handed out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := config.GenerateSecret()
			if err != nil {
				return err
			}
			if term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Fprintf(cmd.ErrOrStderr(), "# add to your environment or .env file:\n")
				fmt.Fprintf(cmd.OutOrStdout(), "%sSESSION_SECRET=%s\n", config.EnvPrefix, secret)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}

// Personal website server for go-homepage
package main

import (
	"fmt"
	"os"

	"github.com/go-while/go-homepage/internal/config"
	"github.com/spf13/cobra"
)

var (
	appVersion = "-unset-"
	commit     = "none"
	date       = "unknown"
)

func main() {
	config.AppVersion = appVersion

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := serveCmd()

	rootCmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the personal website",
		Long: `Serves the static pages of the personal website (blog, about,
experience, projects, interests), the favicon and everything else
under the static directory, with a 404 page for unknown GET paths
and 405 for every other method.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
	}
	rootCmd.Flags().AddFlagSet(serve.Flags())

	rootCmd.AddCommand(
		serve,
		genkeyCmd(),
		versionCmd(),
	)
	return rootCmd
}

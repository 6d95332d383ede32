package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	serve := serveCmd()
	root := &cobra.Command{
		Use:           "api",
		Short:         "SSO user microservice",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.AddCommand(
		serve,
		migrateCmd(),
	)

	return root
}

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

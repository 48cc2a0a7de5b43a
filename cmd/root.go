// Package cmd holds the solarcycle command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"solarcycle.GO/config"
	"solarcycle.GO/core/app"
	"solarcycle.GO/core/logger"
)

var rootCmd = &cobra.Command{
	Use:           "solarcycle",
	Short:         "Solar panel lifecycle tracking with ledger-backed settlement",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute registers custom commands and runs the root command.
func Execute() {
	Apply()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// OpenApp loads configuration and wires the application.
func OpenApp(ctx context.Context) (*app.App, error) {
	cfg := config.LoadAppConfig()
	logger.Init(cfg.App.Env)
	return app.New(ctx, cfg)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solarcycle.GO/api"
	_ "solarcycle.GO/api/asset"
	_ "solarcycle.GO/api/graphql"
	_ "solarcycle.GO/api/sales"
	_ "solarcycle.GO/api/stock"
	"solarcycle.GO/core/app"
	"solarcycle.GO/core/logger"
)

var bannerFonts = []string{"banner", "big", "block", "slant", "standard", "small", "doom", "larry3d", "puffy"}

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, GraphQL endpoint and ledger outbox worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := OpenApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := app.Migrate(a.DB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		go a.Sync.Run(ctx)

		e := api.NewServer(a)
		port := servePort
		if port == "" {
			port = a.Config.App.Port
		}

		figure.NewFigure("SolarCycle", bannerFonts[rand.Intn(len(bannerFonts))], true).Print()
		logger.Info("server starting",
			zap.String("port", port),
			zap.String("ledger", a.Ledger.Signer()),
			zap.String("triage", a.Triage.StrategyName()))

		errCh := make(chan error, 1)
		go func() {
			if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("server shutting down")
		return e.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Listen port (defaults to app.port)")
	rootCmd.AddCommand(serveCmd)
}

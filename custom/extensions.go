// Package custom holds site-specific extensions registered through the
// command, cron, HTTP and GraphQL registries. Import it for side effects.
package custom

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solarcycle.GO/api"
	"solarcycle.GO/cmd"
	"solarcycle.GO/core/app"
	"solarcycle.GO/core/logger"
	"solarcycle.GO/cron"
	gqlregistry "solarcycle.GO/graphql/registry"
	outboxRepo "solarcycle.GO/model/repository/outbox"
	"solarcycle.GO/service/settlement"
)

var staleAge time.Duration

func init() {
	gqlregistry.Register("walletCheck", walletCheck)

	cmd.Register(closeStaleCmd())

	cron.Register("triage_report", "@daily", TriageReport)

	api.RegisterRoute(func(e *echo.Echo, a *app.App) {
		e.GET("/ledger/status", LedgerStatus(a))
	})
}

// walletCheck lets clients validate a buyer address before placing an order.
func walletCheck(_ context.Context, args map[string]interface{}) (interface{}, error) {
	w, _ := args["wallet"].(string)
	return map[string]interface{}{"wallet": w, "valid": settlement.ValidWallet(w)}, nil
}

func closeStaleCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "orders:close-stale",
		Short: "Fail material orders stuck in PROCESSING and release their stock",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := cmd.OpenApp(c.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.Settlement.ReconcileStaleOrders(c.Context(), staleAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "Closed %d stale orders (%d completed, %d failed, %d still pending).\n",
				report.Closed(), report.Completed, report.Failed, report.Pending)
			return nil
		},
	}
	c.Flags().DurationVar(&staleAge, "older-than", 30*time.Minute, "Age after which a PROCESSING order is abandoned")
	return c
}

// TriageReport logs the triage distribution once a day.
func TriageReport(ctx context.Context, a *app.App, _ ...string) error {
	stats, err := a.Assets.TriageStats(ctx)
	if err != nil {
		return err
	}
	logger.Info("triage report",
		zap.String("strategy", stats.Strategy),
		zap.Uint64("evaluations", stats.Evaluations),
		zap.Any("by_result", stats.ByResult))
	return nil
}

// LedgerStatus reports the signer and mirror backlog without authentication.
func LedgerStatus(a *app.App) echo.HandlerFunc {
	return func(c echo.Context) error {
		pending, err := outboxRepo.NewOutboxRepository(a.DB.WithContext(c.Request().Context())).CountPending()
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"enabled": a.Ledger.Enabled(),
			"signer":  a.Ledger.Signer(),
			"pending": pending,
		})
	}
}

package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"solarcycle.GO/core/logger"
	"solarcycle.GO/cron"
	_ "solarcycle.GO/cron/jobs"
)

var jobName string

var cronStartCmd = &cobra.Command{
	Use:   "cron:start",
	Short: "Start the cron scheduler or run a single job by name",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := OpenApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if jobName != "" {
			name := strings.ToLower(jobName)
			fmt.Fprintf(cmd.OutOrStdout(), "Running cron job: %s\n", name)
			return cron.RunJob(ctx, a, name, args...)
		}

		c, err := cron.StartCron(a)
		if err != nil {
			return err
		}
		logger.Info("cron scheduler started")
		<-ctx.Done()
		<-c.Stop().Done()
		logger.Info("cron scheduler stopped")
		return nil
	},
}

func init() {
	cronStartCmd.Flags().StringVarP(&jobName, "job", "j", "", "Run a single cron job by name and exit")
	rootCmd.AddCommand(cronStartCmd)
}

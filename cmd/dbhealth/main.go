package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/repository"
	"github.com/joseph-ayodele/deeds-tracker/internal/server"
)

var (
	envName string
	migrate bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "dbhealth",
	Short:        "Check the transaction store",
	Long:         `Pings the configured database, optionally applies the schema, and prints the stored transaction count.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runHealth,
}

func init() {
	rootCmd.Flags().StringVarP(&envName, "env", "e", common.GetEnv(), "Config environment (config/<env>.yaml)")
	rootCmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the schema before checking")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Ping timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := common.Load(envName)
	if err != nil {
		return err
	}
	logger, err := common.NewLogger(envName, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dbCfg := cfg.Database
	dbCfg.AutoMigrate = migrate
	drv, pool, err := server.ConnectDB(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("DB health: FAIL (%w)", err)
	}
	defer server.CloseDB(drv, pool, logger)

	if err := server.PingDB(ctx, drv, logger, timeout); err != nil {
		return fmt.Errorf("DB health: FAIL (%w)", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "DB health: OK")

	n, err := repository.NewTransactionRepository(drv, logger).Count(ctx, repository.TransactionFilter{})
	if err != nil {
		logger.Warn("dbhealth.count.failed", zap.Error(err))
		return fmt.Errorf("count transactions (run with --migrate?): %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "transactions: %d\n", n)
	return nil
}

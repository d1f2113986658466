// Command tallyctl runs operational tasks against the Tally database:
// schema migrations and rollup verification.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tally/internal/config"
	"tally/internal/database"
	"tally/internal/logger"
)

var appConfig *config.Config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "tallyctl",
		Short:             "Operational commands for the Tally ledger",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	root.PersistentFlags().String("database-url", "", "postgres URL (default: built from DB_* settings)")
	_ = viper.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))
	_ = viper.BindEnv("database_url", "DATABASE_URL")

	root.AddCommand(migrateCmd())
	root.AddCommand(verifyCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appConfig = cfg
	logger.Init(cfg.Env)
	return nil
}

// databaseURL prefers an explicit --database-url over the DB_* settings.
func databaseURL() string {
	if u := viper.GetString("database_url"); u != "" {
		return u
	}
	return database.NewConfig(appConfig).URL()
}

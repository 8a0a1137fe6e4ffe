/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aquanet/apiserver/internal/db"
	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/internal/server"
)

const shutdownTimeout = 15 * time.Second

var (
	serverMigrate  bool
	serverInMemory bool
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the aquanet API server",
	Long: `Starts the aquanet API server. Usage:

	aquanet server [--migrate] [--in-memory]
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serverMigrate && !serverInMemory {
			if err := db.Migrate(ctx, cfg.Database); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}

		srv, err := server.New(ctx, cfg, log, server.Options{InMemory: serverInMemory})
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("graceful shutdown failed", logger.Err(err))
			return err
		}
		return <-errCh
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().BoolVar(&serverMigrate, "migrate", false, "apply pending database migrations before serving")
	serverCmd.Flags().BoolVar(&serverInMemory, "in-memory", false, "keep all data in process instead of PostgreSQL")
}

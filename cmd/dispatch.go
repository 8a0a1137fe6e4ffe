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

	"github.com/spf13/cobra"

	"github.com/aquanet/apiserver/internal/db"
	"github.com/aquanet/apiserver/internal/mq"
	"github.com/aquanet/apiserver/internal/server"
	"github.com/aquanet/apiserver/internal/services"
)

// dispatchCmd represents the dispatch command
var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver notification events from the message queue",
	Long: `Consumes notification and quality-alert events published by the API
server and resolves each recipient's delivery channels from their
notification settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.Open(ctx, cfg.MQ)
		if errors.Is(err, mq.ErrDisabled) {
			return errors.New("MQ_BACKEND is not set; nothing to consume")
		}
		if err != nil {
			return err
		}
		bus := mq.NewEventBus(backend, cfg.MQ.NotificationChannel, log)
		defer bus.Close()

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		repos := server.SQLRepositories(conn)
		dispatcher := services.NewDispatcher(repos.Users, repos.Settings, services.LogDelivery(log), log)

		log.Info("dispatching notifications", "backend", cfg.MQ.Backend, "channel", cfg.MQ.NotificationChannel)
		if err := bus.Consume(ctx, dispatcher.Handle); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}

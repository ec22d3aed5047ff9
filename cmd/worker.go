/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/projectplus/apiserver/config"
	"github.com/projectplus/apiserver/internal/logger"
	"github.com/projectplus/apiserver/internal/mq"
	"github.com/projectplus/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes queued emails and delivers them over SMTP",
	Long: `Consumes the mail channel of the configured message queue
(MQ_BACKEND=rabbitmq or pubsub) and delivers every job over SMTP. Usage:

	projectplus worker
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		log := logger.New(cfg.Log, os.Stdout)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.NewBackend(ctx, cfg.MQ)
		if err != nil {
			log.Fatal().Err(err).Str("backend", cfg.MQ.Backend).Msg("failed to connect message queue")
		}
		defer backend.Close()

		worker := notify.NewWorker(backend, cfg.MQ.MailChannel, notify.NewSMTPMailer(cfg.SMTP, log), log)
		if err := worker.Run(ctx); err != nil {
			log.Error().Err(err).Msg("mail worker stopped")
			return
		}
		log.Info().Msg("mail worker stopped")
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

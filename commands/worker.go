package commands

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"listings-api/consumers"
)

// WorkerCmd follows the event exchange and logs every inventory change.
func WorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume listing events and write them to the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cfg.Messaging.RabbitMQURL == "" {
				return errors.New("messaging.rabbitmq_url is not set")
			}

			consumer, err := consumers.NewRabbitMQConsumer(cfg.Messaging.RabbitMQURL, cfg.Messaging.Exchange,
				consumers.NewEventLogger(logger), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := consumer.Close(); err != nil {
					logger.Warn("close event consumer", zap.Error(err))
				}
			}()
			if err := consumer.Start(); err != nil {
				return err
			}
			logger.Info("worker started", zap.String("exchange", cfg.Messaging.Exchange))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			select {
			case <-ctx.Done():
				logger.Info("worker stopping")
				return nil
			case <-consumer.Done():
				return errors.New("broker closed the delivery channel")
			}
		},
	}
}

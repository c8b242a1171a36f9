// Command mail-worker consumes password reset mail from the broker and
// delivers it through the configured mail provider.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"finance-tracker/internal/amqp"
	"finance-tracker/internal/config"
	applog "finance-tracker/internal/log"
	"finance-tracker/internal/mail"
)

func main() {
	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: "mail-worker",
		JSON:      cfg.LogJSON,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to run the mail worker")
		os.Exit(1)
	}

	sender, err := mail.NewSender(cfg.Mail, logger)
	if err != nil {
		logger.Error("Failed to initialize mail sender", "error", err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting mail worker", "provider", cfg.Mail.Provider, "queue", cfg.AMQPQueue)
	err = client.ConsumeMail(ctx, deliver(sender, logger))
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Mail worker stopped")
}

// deliver sends one consumed message. A returned error rejects the
// delivery without requeueing it.
func deliver(sender mail.Sender, logger *applog.Logger) func(context.Context, *mail.Message) error {
	return func(ctx context.Context, msg *mail.Message) error {
		if err := sender.Send(ctx, *msg); err != nil {
			logger.Error("Mail delivery failed", "error", err, "subject", msg.Subject)
			return err
		}
		logger.Info("Mail delivered", "subject", msg.Subject)
		return nil
	}
}

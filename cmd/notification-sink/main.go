package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"paghetta/internal/amqp"
	"paghetta/internal/config"
	"paghetta/internal/log"
)

// The sink drains the notifications queue and writes each message to the
// log, one consumer per family deployment. Anything fancier (push, email)
// replaces the handler, not the loop.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Component: log.ComponentSink,
		Handler:   log.NewHandler(cfg.LogFormat, log.ParseLevel(cfg.LogLevel)),
	})
	log.SetDefault(logger)

	logger.Info("Starting notification-sink")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required, the sink has nothing to consume without a broker")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()
	logger.Info("Consuming notifications", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	// Shut down on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = client.Consume(ctx, func(msg *amqp.Notification) error {
		logNotification(ctx, logger, msg)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Notification-sink shutdown complete")
}

// logNotification renders one message. Unknown kinds are logged and
// dropped rather than requeued; requeueing would just loop them forever.
func logNotification(ctx context.Context, logger *log.Logger, msg *amqp.Notification) {
	payload, err := msg.DecodePayload()
	if err != nil {
		logger.WarnContext(ctx, "Dropping undecodable notification",
			"kind", msg.Kind, log.FieldError, err)
		return
	}

	switch p := payload.(type) {
	case amqp.AllowancePaidPayload:
		logger.InfoContext(ctx, "Allowance paid",
			"account_id", p.AccountID,
			"amount_cents", p.AmountCents,
			"at", msg.Timestamp)
	case amqp.RewardApprovedPayload:
		logger.InfoContext(ctx, "Chore reward approved",
			"account_id", p.AccountID,
			"task", p.TaskTitle,
			"amount_cents", p.AmountCents,
			"at", msg.Timestamp)
	case amqp.BudgetAlertPayload:
		logger.WarnContext(ctx, "Budget alert",
			"account_id", p.AccountID,
			"category", p.Category,
			"status", p.Status,
			"spent_cents", p.SpentCents,
			"limit_cents", p.LimitCents,
			"at", msg.Timestamp)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/Alertus/internal/config/email-notifier"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/NordCoder/Alertus/internal/obs"
	"github.com/NordCoder/Alertus/internal/repository/kafka"
	pg "github.com/NordCoder/Alertus/internal/repository/postgres"
	emailnotifier "github.com/NordCoder/Alertus/internal/services/email-notifier"
	"go.uber.org/zap"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "../config/email-notifier.yaml"
}

func wiring(ctx context.Context, db *pg.DB, cfg *config.Config, cons *kafka.Consumer, l *zap.Logger) (*emailnotifier.Controller, error) {
	sender, err := emailnotifier.NewSender(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	uc := &emailnotifier.Handler{
		Deliveries: pg.NewDeliveryRepo(db),
		Out:        sender,
		Clock:      notification.SystemClock{},
		Retry:      emailnotifier.SendPolicy(l),
		Log:        l,
	}
	return &emailnotifier.Controller{Log: l, Sub: cons, UC: uc}, nil
}

func main() {
	// init
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	l.Info("starting email-notifier",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.EmailTopic),
		zap.String("provider", cfg.Email.Provider),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	l.Info("db connected")

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// kafka
	cons, err := kafka.BootstrapConsumer(rootCtx, cfg.Kafka.AsEmailConsumerConfig(), l)
	if err != nil {
		l.Fatal("kafka consumer", zap.Error(err))
	}
	cons = cons.WithLogger(l)
	defer func() { _ = cons.Close() }()

	// start
	ctrl, err := wiring(rootCtx, db, cfg, cons, l)
	if err != nil {
		l.Fatal("wiring", zap.Error(err))
	}
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Run(rootCtx) }()

	// main loop
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case runErr := <-errCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			l.Error("controller error", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NordCoder/Alertus/internal/alerting"
	"github.com/NordCoder/Alertus/internal/channel"
	config "github.com/NordCoder/Alertus/internal/config/reminder-scheduler"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/NordCoder/Alertus/internal/notifier"
	"github.com/NordCoder/Alertus/internal/obs"
	"github.com/NordCoder/Alertus/internal/reminder"
	kafkaRepo "github.com/NordCoder/Alertus/internal/repository/kafka"
	pg "github.com/NordCoder/Alertus/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Alertus/internal/repository/redis"
	scheduler "github.com/NordCoder/Alertus/internal/services/reminder-scheduler"
	"go.uber.org/zap"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "../config/reminder-scheduler.yaml"
}

func main() {
	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	l.Info("starting reminder-scheduler",
		zap.String("spec", cfg.Sched.Spec),
		zap.String("metrics_addr", cfg.Sched.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// redis
	rdb, err := redisrepo.NewClient(ctx, cfg.Redis)
	if err != nil {
		l.Fatal("redis connect", zap.Error(err))
	}
	var (
		inbox channel.Inbox
		lock  reminder.Locker
	)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		inbox = redisrepo.NewInbox(rdb, 0)
		lock = redisrepo.NewLock(rdb, "reminder-sweep", cfg.Reminder.LockTTL)
	}

	// kafka
	emailProd := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EmailTopic).WithLogger(l)
	defer func() { _ = emailProd.Close() }()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Sched.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// wiring
	clock := notification.SystemClock{Loc: cfg.Reminder.Location()}
	alertRepo := pg.NewAlertRepo(db)
	userRepo := pg.NewUserRepo(db)
	prefRepo := pg.NewPreferenceRepo(db)
	deliveryRepo := pg.NewDeliveryRepo(db)
	tx := pg.NewTransactor(db, l)

	engine := reminder.New(l, reminder.Deps{
		Alerts:     alertRepo,
		Users:      userRepo,
		Prefs:      prefRepo,
		Deliveries: deliveryRepo,
		Tx:         tx,
		Channels: channel.NewRegistry(
			channel.NewInApp(inbox, clock.Now),
			channel.NewEmail(kafkaRepo.NewEmailEventsKafka(emailProd), clock.Now),
			channel.SMS{},
		),
		Clock: clock,
		Lock:  lock,
	}, cfg.Reminder.AsEngineConfig())

	subject := notifier.NewSubject(l)
	subject.Attach("dispatch", notifier.NewDispatchSubscriber(engine, l))
	subject.Attach("metrics", notifier.MetricsSubscriber{})

	svc := alerting.New(l, alerting.Deps{
		Alerts:     alertRepo,
		Users:      userRepo,
		Prefs:      prefRepo,
		Deliveries: deliveryRepo,
		Outbox:     pg.NewOutboxRepo(db),
		Tx:         tx,
		Reminders:  engine,
		Notifier:   subject,
		Clock:      clock,
	})

	runner := scheduler.New(l, scheduler.NewUC(svc, engine), scheduler.Config{
		Spec:       cfg.Sched.Spec,
		RunOnStart: cfg.Sched.RunOnStart,
		Location:   cfg.Reminder.Location(),
	})

	// run
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	select {
	case <-ctx.Done():
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		l.Error("runner error", zap.Error(err))
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

package main

import (
	"context"

	"github.com/NordCoder/Alertus/internal/alerting"
	"github.com/NordCoder/Alertus/internal/channel"
	config "github.com/NordCoder/Alertus/internal/config/api-gateway"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/NordCoder/Alertus/internal/notifier"
	"github.com/NordCoder/Alertus/internal/obs"
	"github.com/NordCoder/Alertus/internal/obs/retry"
	outboxrelay "github.com/NordCoder/Alertus/internal/outbox"
	"github.com/NordCoder/Alertus/internal/reminder"
	kafkarepo "github.com/NordCoder/Alertus/internal/repository/kafka"
	pg "github.com/NordCoder/Alertus/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Alertus/internal/repository/redis"
	"github.com/NordCoder/Alertus/internal/services/api-gateway/alerts"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const inboxSize = 200

type app struct {
	alerts    *alerts.Server
	relay     *outboxrelay.Runner
	producers []*kafkarepo.Producer
}

func (a *app) close() {
	for _, p := range a.producers {
		_ = p.Close()
	}
}

func wire(cfg *config.Config, logger *zap.Logger, db *pg.DB, rdb *goredis.Client) *app {
	clock := notification.SystemClock{Loc: cfg.Reminder.Location()}

	alertRepo := pg.NewAlertRepo(db)
	userRepo := pg.NewUserRepo(db)
	prefRepo := pg.NewPreferenceRepo(db)
	deliveryRepo := pg.NewDeliveryRepo(db)
	outboxRepo := pg.NewOutboxRepo(db)
	tx := pg.NewTransactor(db, logger)

	emailProd := kafkarepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EmailTopic).WithLogger(logger)
	lifecycleProd := kafkarepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.LifecycleTopic).WithLogger(logger)

	var (
		inbox     channel.Inbox
		inboxRead alerts.InboxReader
		lock      reminder.Locker
	)
	if rdb != nil {
		ib := redisrepo.NewInbox(rdb, inboxSize)
		inbox, inboxRead = ib, ib
		lock = redisrepo.NewLock(rdb, "reminder-sweep", cfg.Reminder.LockTTL)
	}

	registry := channel.NewRegistry(
		channel.NewInApp(inbox, clock.Now),
		channel.NewEmail(kafkarepo.NewEmailEventsKafka(emailProd), clock.Now),
		channel.SMS{},
	)
	engine := reminder.New(logger, reminder.Deps{
		Alerts:     alertRepo,
		Users:      userRepo,
		Prefs:      prefRepo,
		Deliveries: deliveryRepo,
		Tx:         tx,
		Channels:   registry,
		Clock:      clock,
		Lock:       lock,
	}, cfg.Reminder.AsEngineConfig())

	subject := notifier.NewSubject(logger)
	subject.Attach("dispatch", notifier.NewDispatchSubscriber(engine, logger))
	subject.Attach("metrics", notifier.MetricsSubscriber{})

	svc := alerting.New(logger, alerting.Deps{
		Alerts:     alertRepo,
		Users:      userRepo,
		Prefs:      prefRepo,
		Deliveries: deliveryRepo,
		Outbox:     outboxRepo,
		Tx:         tx,
		Reminders:  engine,
		Notifier:   subject,
		Clock:      clock,
	})

	a := &app{
		alerts:    alerts.NewServer(logger, svc, inboxRead),
		producers: []*kafkarepo.Producer{emailProd, lifecycleProd},
	}
	if cfg.Outbox.Enable {
		a.relay = outboxrelay.NewOutboxRunner(
			obs.Component(logger, "outbox"),
			outboxRepo,
			outboxrelay.MakeGlobalOutboxHandler(kafkarepo.NewAlertEventsKafka(lifecycleProd), retry.DefaultKafkaPolicy(logger)),
			cfg.Outbox.Workers,
			cfg.Outbox.BatchSize,
			cfg.Outbox.WaitTime,
			cfg.Outbox.InProgressTTL,
		)
	}
	return a
}

func (a *app) startRelay(ctx context.Context) {
	if a.relay != nil {
		a.relay.Start(ctx)
	}
}

func (a *app) waitRelay() {
	if a.relay != nil {
		a.relay.Wait()
	}
}

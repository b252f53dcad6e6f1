package reminder_scheduler_config

import (
	common "github.com/NordCoder/Alertus/internal/config/common"
	pg "github.com/NordCoder/Alertus/internal/repository/postgres"
)

// Sched configures the cron trigger. Spec is a robfig/cron expression or
// descriptor such as "@every 2h".
type Sched struct {
	Spec        string `mapstructure:"spec"`
	RunOnStart  bool   `mapstructure:"run_on_start"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Config struct {
	App      common.App      `mapstructure:"app"`
	DB       pg.Config       `mapstructure:"db"`
	OTEL     common.OTEL     `mapstructure:"otel"`
	Log      common.Log      `mapstructure:"log"`
	Kafka    common.Kafka    `mapstructure:"kafka"`
	Redis    common.Redis    `mapstructure:"redis"`
	Reminder common.Reminder `mapstructure:"reminder"`
	Sched    Sched           `mapstructure:"sched"`
}

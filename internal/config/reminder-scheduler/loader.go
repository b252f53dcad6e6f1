package reminder_scheduler_config

import (
	"errors"

	common "github.com/NordCoder/Alertus/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path)
	common.SetDefaults(v, "reminder-scheduler")

	v.SetDefault("sched.spec", "@every 2h")
	v.SetDefault("sched.run_on_start", true)
	v.SetDefault("sched.metrics_addr", ":8082")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is empty")
	}
	return &cfg, nil
}

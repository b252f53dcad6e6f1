package api_gateway_config

import (
	"time"

	common "github.com/NordCoder/Alertus/internal/config/common"
	pg "github.com/NordCoder/Alertus/internal/repository/postgres"
)

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Outbox drives the relay of alert lifecycle events to Kafka.
type Outbox struct {
	Enable        bool          `mapstructure:"enable"`
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Config struct {
	App      common.App      `mapstructure:"app"`
	Server   Server          `mapstructure:"server"`
	DB       pg.Config       `mapstructure:"db"`
	OTEL     common.OTEL     `mapstructure:"otel"`
	Log      common.Log      `mapstructure:"log"`
	Auth     Auth            `mapstructure:"auth"`
	CORS     CORS            `mapstructure:"cors"`
	Kafka    common.Kafka    `mapstructure:"kafka"`
	Redis    common.Redis    `mapstructure:"redis"`
	Reminder common.Reminder `mapstructure:"reminder"`
	Outbox   Outbox          `mapstructure:"outbox"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

const (
	ErrNoDSN    ErrConfig = "db.dsn is empty"
	ErrNoSecret ErrConfig = "auth.jwt_secret is empty"
)

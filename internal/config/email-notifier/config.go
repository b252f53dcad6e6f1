package email_notifier_config

import (
	"time"

	common "github.com/NordCoder/Alertus/internal/config/common"
	pginfra "github.com/NordCoder/Alertus/internal/repository/postgres"
)

const (
	ProviderSMTP = "smtp"
	ProviderSES  = "ses"
)

type Email struct {
	Provider string `mapstructure:"provider"`
	From     string `mapstructure:"from"`
	// SubjPrefix is prepended to every subject.
	SubjPrefix string `mapstructure:"subj_prefix"`
}

type SMTP struct {
	Addr     string        `mapstructure:"addr"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SES uses the default AWS credential chain unless a static key pair is set.
type SES struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ConfigSet       string `mapstructure:"config_set"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Config struct {
	App    common.App     `mapstructure:"app"`
	DB     pginfra.Config `mapstructure:"db"`
	OTEL   common.OTEL    `mapstructure:"otel"`
	Log    common.Log     `mapstructure:"log"`
	Kafka  common.Kafka   `mapstructure:"kafka"`
	Email  Email          `mapstructure:"email"`
	SMTP   SMTP           `mapstructure:"smtp"`
	SES    SES            `mapstructure:"ses"`
	Server Server         `mapstructure:"server"`
}

package email_notifier_config

import (
	"fmt"

	common "github.com/NordCoder/Alertus/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path)
	common.SetDefaults(v, "email-notifier")

	v.SetDefault("email.provider", ProviderSMTP)
	v.SetDefault("email.from", "noreply@alertus.dev")
	v.SetDefault("email.subj_prefix", "[Alertus]")

	v.SetDefault("smtp.addr", "localhost:1025")
	v.SetDefault("smtp.use_tls", false)
	v.SetDefault("smtp.timeout", "5s")

	v.SetDefault("ses.region", "eu-west-1")

	v.SetDefault("server.metrics_addr", ":8084")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	switch cfg.Email.Provider {
	case ProviderSMTP, ProviderSES:
	default:
		return nil, fmt.Errorf("unknown email.provider %q", cfg.Email.Provider)
	}
	return &cfg, nil
}

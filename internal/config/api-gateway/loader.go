package api_gateway_config

import (
	common "github.com/NordCoder/Alertus/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path)
	common.SetDefaults(v, "api-gateway")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("outbox.enable", true)
	v.SetDefault("outbox.workers", 2)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.wait_time", "500ms")
	v.SetDefault("outbox.in_progress_ttl", "1m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN == "" {
		return nil, ErrNoDSN
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, ErrNoSecret
	}
	return &cfg, nil
}

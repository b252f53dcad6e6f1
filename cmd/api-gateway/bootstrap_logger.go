package main

import (
	config "github.com/NordCoder/Alertus/internal/config/api-gateway"
	"github.com/NordCoder/Alertus/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
}

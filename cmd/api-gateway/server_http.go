package main

import (
	"context"
	"net/http"
	"time"

	config "github.com/NordCoder/Alertus/internal/config/api-gateway"
	pg "github.com/NordCoder/Alertus/internal/repository/postgres"
	apigateway "github.com/NordCoder/Alertus/internal/services/api-gateway"
	"github.com/NordCoder/Alertus/internal/services/api-gateway/alerts"
	"go.uber.org/zap"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, alertsSrv *alerts.Server) *http.Server {
	handler := apigateway.NewRouter(logger, apigateway.RouterConfig{
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Health: func(ctx context.Context) error {
			return db.Pool.Ping(ctx)
		},
	}, alertsSrv)

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}

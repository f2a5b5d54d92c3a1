package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursework-api/internal/access"
	"coursework-api/internal/auth"
	"coursework-api/internal/config"
	"coursework-api/internal/handlers"
	"coursework-api/internal/lifecycle"
	"coursework-api/internal/realtime"
	"coursework-api/internal/routes"
	"coursework-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, db, err := setup()
			if err != nil {
				return err
			}
			defer closeDB(db)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, store.New(db))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, st *store.Store) error {
	if cfg.InsecureSecret() {
		logger.Warn("using the built-in development JWT secret; set COURSEWORK_AUTH_JWT_SECRET")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := realtime.NewHub()
	var publisher realtime.Publisher = hub
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		redisPub := realtime.NewRedisPublisher(client, cfg.Redis.ChannelPrefix)
		publisher = redisPub
		go func() {
			if err := redisPub.Relay(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis relay stopped", slog.String("error", err.Error()))
			}
		}()
		logger.Info("publishing events through redis", slog.String("addr", cfg.Redis.Addr))
	}

	checker := access.NewChecker(st, nil)
	service := lifecycle.NewService(st, checker, publisher, logger)
	issuer := auth.NewTokenIssuer(auth.Options{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	h := handlers.New(service, st, issuer, hub, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           routes.SetupRoutes(h, issuer, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

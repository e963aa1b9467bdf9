// Command engaged runs the reward and engagement accounting engine with its
// REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	app "github.com/OpinNetwork/engage_layer/internal/app"
	"github.com/OpinNetwork/engage_layer/internal/app/httpapi"
	"github.com/OpinNetwork/engage_layer/internal/app/storage/postgres"
	redisstore "github.com/OpinNetwork/engage_layer/internal/app/storage/redis"
	"github.com/OpinNetwork/engage_layer/internal/config"
	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/engaged.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		logger.NewDefault("engaged").WithError(err).Warn("load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("engaged").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New("engaged", cfg.LogLevel)

	stores := app.Stores{}
	if cfg.Postgres.DSN != "" {
		pg, err := postgres.Open(cfg.Postgres.DSN)
		if err != nil {
			log.WithError(err).Error("open postgres")
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.WithError(err).Error("ensure postgres schema")
			os.Exit(1)
		}
		stores.Users = pg
		stores.Ledger = pg
		log.Info("users and ledger backed by postgres")
	}
	if cfg.Redis.Addr != "" {
		snapshots, err := redisstore.Open(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.WithError(err).Error("open redis")
			os.Exit(1)
		}
		defer snapshots.Close()
		stores.Snapshots = snapshots
		log.Info("snapshots backed by redis")
	}

	application, err := app.New(stores, app.Options{
		ChainRPCURL:   cfg.Chain.RPCURL,
		ChainNetwork:  cfg.Chain.Network,
		MessageSecret: cfg.Messages.Secret,
	}, log)
	if err != nil {
		log.WithError(err).Error("initialise application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewHandler(application, rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
	log.Info("engaged stopped")
}

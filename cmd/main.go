package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"eventWaitlist/cmd/buildCFG"
	"eventWaitlist/cmd/middleware"
	"eventWaitlist/internal/api/api"
	rabbitReader "eventWaitlist/internal/consumerWorker"
	"eventWaitlist/internal/mailer"
	"eventWaitlist/internal/notify"
	"eventWaitlist/internal/rabbit"
	"eventWaitlist/internal/repo"
	"eventWaitlist/internal/service"
	"eventWaitlist/internal/stats"
	"eventWaitlist/internal/sweeper"
	"eventWaitlist/internal/waitlist"
)

func openRepository(dc buildCFG.DBConfig, log *zerolog.Logger) (repo.Repository, error) {
	if dc.Driver == buildCFG.DriverSQLite {
		return repo.NewSQLiteRepository(dc.SQLitePath, log)
	}

	db, err := dbpg.New(dc.MasterDSN, dc.SlaveDSNs, dc.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return repo.NewRepository(db, log)
}

func openStats(ctx context.Context, rc buildCFG.RedisConfig, log *zerolog.Logger) (stats.Store, func()) {
	if !rc.Enabled {
		return stats.NewMemoryStore(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", rc.Addr).Msg("redis unavailable, falling back to in-memory stats")
		_ = rdb.Close()
		return stats.NewMemoryStore(), func() {}
	}

	log.Info().Str("addr", rc.Addr).Msg("Redis connected successfully")
	return stats.NewRedisStore(rdb, stats.WithPrefix(rc.Prefix), stats.WithTTL(rc.TTL)), func() { _ = rdb.Close() }
}

func main() {
	zlog.Init()
	log := zlog.Logger
	log.Info().Msg("Hello from zlog")

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", ""); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	dbCfg, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	repository, err := openRepository(dbCfg, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	defer repository.Close()
	log.Info().Str("driver", dbCfg.Driver).Msg("Database connected successfully")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := repository.MigrateUp(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	statsStore, closeStats := openStats(rootCtx, buildCFG.BuildRedisConfig(cfg, &log), &log)
	defer closeStats()

	mail := mailer.New(buildCFG.BuildMailConfig(cfg, &log), &log)
	handler := rabbitReader.NewHandler(repository, mail, &log)

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}

	var (
		dispatcher waitlist.Dispatcher
		reader     *rabbitReader.Reader
	)
	if rabbitCfg.Enabled {
		rmq, err := rabbit.NewRabbit(rabbitCfg.Config)
		if err != nil {
			log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rmq.Close()

		dispatcher = notify.NewRabbitDispatcher(rmq, &log)
		reader = rabbitReader.NewReader(rmq, handler, &log)
		reader.Start(rootCtx)
	} else {
		log.Warn().Msg("RabbitMQ disabled, notifications are handled inline")
		dispatcher = notify.Inline{Handle: handler.Handle}
	}

	engine := waitlist.New(repository, dispatcher, &log, waitlist.WithStats(statsStore))

	sweepCfg := buildCFG.BuildSweepConfig(cfg, &log)
	var sweep *sweeper.Sweeper
	if sweepCfg.Enabled {
		sweep = sweeper.New(engine, sweepCfg.Interval, &log)
		sweep.Start(rootCtx)
	}

	var limiters *middleware.Limiters
	if rl := buildCFG.BuildRateLimitConfig(cfg, &log); rl.Enabled {
		limiters = middleware.NewLimiters(rl.RPS, rl.Burst, middleware.WithIdleTTL(rl.IdleTTL))
		limiters.StartJanitor(rootCtx)
	}

	serviceInstance := service.NewService(repository, engine, statsStore, &log)
	app := api.NewRouters(&api.Routers{
		Service:  serviceInstance,
		Log:      &log,
		Limiters: limiters,
		Mode:     serverCfg.GinMode,
	})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}

	if sweep != nil {
		sweep.Stop()
	}
	if reader != nil {
		reader.Stop()
	}
	cancelRoot()

	log.Info().Msg("Shutdown complete")
}

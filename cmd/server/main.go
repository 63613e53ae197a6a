package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/cache"
	"github.com/iliyamo/ctei-manager/internal/config"
	"github.com/iliyamo/ctei-manager/internal/database"
	"github.com/iliyamo/ctei-manager/internal/handler"
	"github.com/iliyamo/ctei-manager/internal/jobs"
	"github.com/iliyamo/ctei-manager/internal/logging"
	"github.com/iliyamo/ctei-manager/internal/middleware"
	"github.com/iliyamo/ctei-manager/internal/pool"
	"github.com/iliyamo/ctei-manager/internal/queue"
	"github.com/iliyamo/ctei-manager/internal/repository"
	"github.com/iliyamo/ctei-manager/internal/router"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	cacheCfg := config.LoadCacheConfig()
	poolCfg := config.LoadPoolConfig()
	rlCfg := config.LoadRateLimitConfig()
	queueCfg := config.LoadQueueConfig()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DSN(), poolCfg.MaxConnections)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer db.Close()
	conns := pool.NewConnPool(db, poolCfg.Config, logger)
	defer conns.Close()

	rdb := config.NewRedisClient()
	var durable cache.DurableStore
	if rdb != nil {
		defer rdb.Close()
		durable = cache.NewRedisStore(rdb, cacheCfg.Prefix, logger)
	} else {
		logger.Warn("redis unreachable; running with the in-process cache only and without rate limiting")
	}
	store := cache.New(cache.Options{
		DefaultTTL:      cacheCfg.DefaultTTL,
		DurableTTL:      cacheCfg.DurableTTL,
		CleanupInterval: cacheCfg.CleanupInterval,
		Durable:         durable,
		Logger:          logger,
	})
	store.Start(ctx)
	defer store.Stop()

	instanceID := uuid.NewString()
	var publisher middleware.InvalidationPublisher
	if queueCfg.Enabled() {
		p := queue.NewPublisher(queueCfg, instanceID, logger)
		defer p.Close()
		publisher = p
		consumer := queue.NewConsumer(queueCfg, instanceID, store, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("invalidation consumer stopped", zap.Error(err))
			}
		}()
	}
	rc := middleware.NewResponseCache(store, cacheCfg, publisher, logger)

	tokens := auth.NewTokenCodec(cfg.JWTSecret, auth.WithTTL(cfg.TokenTTL))
	hasher := auth.NewPasswordHasher(cfg.PasswordScheme, cfg.PasswordSalt, cfg.BcryptCost)

	users := repository.NewUserRepo(conns)
	projects := repository.NewProjectRepo(conns)
	products := repository.NewProductRepo(conns)
	stats := repository.NewStatsRepo(conns)

	health := &handler.HealthHandler{DB: db}
	if rs, ok := durable.(*cache.RedisStore); ok {
		health.Breaker = rs.State
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(store.Collectors("ctei")...)
	reg.MustRegister(conns.Collectors("ctei", "db")...)

	var limiter echo.MiddlewareFunc = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if rdb != nil {
		limiter = middleware.NewTokenBucket(rlCfg, rdb, logger)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()

	router.RegisterRoutes(e, health, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.RegisterAuth(e, handler.NewAuthHandler(users, hasher, tokens, logger), tokens, limiter, logger)
	projectH := handler.NewProjectHandler(projects, products, rc, logger)
	router.RegisterPublic(e, projectH, handler.NewProductHandler(products),
		handler.NewStatsHandler(stats, store, cacheCfg.DefaultTTL), rc, tokens, logger)
	router.RegisterDashboard(e, projectH, rc, tokens, logger)
	router.RegisterAdmin(e, handler.NewAdminHandler(users, rc, conns, logger), tokens, logger)

	sched, err := jobs.New(jobs.Schedule{
		PoolWindowReset:   poolCfg.StatsReset,
		CacheMetricsReset: cacheCfg.MetricsReset,
		StatsLog:          jobs.DefaultStatsLog,
	}, conns, store, logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	sched.Start()

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("instance", instanceID))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
}

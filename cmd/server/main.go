package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fileshelf/internal/analytics"
	"fileshelf/internal/api"
	"fileshelf/internal/auth"
	"fileshelf/internal/config"
	"fileshelf/internal/connectivity"
	"fileshelf/internal/database"
	"fileshelf/internal/ingest"
	"fileshelf/internal/logging"
	"fileshelf/internal/middleware"
	"fileshelf/internal/repository/postgres"
	"fileshelf/internal/service"
	"fileshelf/internal/storage/driver"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("服务异常退出", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("配置加载完成，开始启动服务", "storage_driver", cfg.StorageDriver, "auth_mode", cfg.AuthMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	store, objectsHandler, err := driver.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	}

	fileRepo := postgres.NewFileRepository(db)
	monitor := connectivity.NewMonitor(cfg.ConnectivityInterval, logger, map[string]connectivity.Probe{
		"postgres":     func(ctx context.Context) error { return database.Ping(ctx, db) },
		"object_store": connectivity.ObjectStoreProbe(store),
	})

	coordinator := ingest.NewCoordinator(store, fileRepo, monitor, logger, ingest.Options{
		OpTimeout: cfg.StoreOpTimeout,
		Progress: func(index, total int, name string) {
			logger.Debug("处理上传文件", "index", index+1, "total", total, "name", name)
		},
	})
	files := service.NewFileService(fileRepo, store, logger)

	limiter, err := newLimiter(cfg, redisClient, logger)
	if err != nil {
		return err
	}

	handlers := api.Handlers{
		Files:     api.NewFileHandler(files, logger),
		Uploads:   api.NewUploadHandler(ingest.NewValidator(cfg.MaxUploadBytes), coordinator, cfg.MaxBatchFiles, logger),
		Status:    api.NewStatusHandler(files, monitor),
		Analytics: api.NewAnalyticsHandler(analytics.NewService(postgres.NewPageViewRepository(db), logger), logger),
		Limiter:   limiter,
		Objects:   objectsHandler,
	}
	if err := wireSessions(cfg, redisClient, logger, &handlers); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
		Handler:      api.NewRouter(cfg, handlers, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("服务监听端口", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("优雅关闭失败", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("服务已停止")
	return err
}

// newLimiter 配置了 Redis 时使用共享限流，否则退回进程内限流。
func newLimiter(cfg *config.Config, client *redis.Client, logger *slog.Logger) (middleware.Limiter, error) {
	if cfg.RateLimitRequests <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, nil
	}
	if client != nil {
		l, err := middleware.NewRedisLimiter(client, "fileshelf:ratelimit", cfg.RateLimitRequests, cfg.RateLimitWindow, logger)
		if err != nil {
			return nil, fmt.Errorf("create rate limiter: %w", err)
		}
		return l, nil
	}
	return middleware.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow), nil
}

// wireSessions 在配置了 SESSION_SECRET 时启用管理端与统计页面的登录。
func wireSessions(cfg *config.Config, client *redis.Client, logger *slog.Logger, h *api.Handlers) error {
	if cfg.SessionSecret == "" {
		return nil
	}

	var lockout auth.Lockout
	if client != nil {
		l, err := auth.NewRedisLockout(client, "fileshelf:login", cfg.LoginLockout)
		if err != nil {
			return fmt.Errorf("create lockout store: %w", err)
		}
		lockout = l
	} else {
		logger.Warn("REDIS_ADDR 未配置，登录失败计数仅保存在进程内存中")
		lockout = auth.NewMemoryLockout(cfg.LoginLockout)
	}

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	admin := auth.NewAuthenticator(auth.ScopeAdmin, auth.Credentials{
		Username:     cfg.AdminUsername,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
	}, lockout, cfg.LoginMaxAttempts, logger)
	viewer := auth.NewAuthenticator(auth.ScopeAnalytics, auth.Credentials{
		Username: cfg.AnalyticsUsername,
		Password: cfg.AnalyticsPassword,
	}, lockout, cfg.LoginMaxAttempts, logger)

	h.Sessions = sessions
	h.AdminAuth = api.NewAuthHandler(admin, sessions, api.AdminCookieName, cfg.SecureCookies, logger)
	h.AnalyticsAuth = api.NewAuthHandler(viewer, sessions, api.AnalyticsCookieName, cfg.SecureCookies, logger)
	return nil
}


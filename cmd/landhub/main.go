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

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/landhub/internal/app"
	"github.com/odyssey-erp/landhub/internal/audit"
	audithttp "github.com/odyssey-erp/landhub/internal/audit/http"
	"github.com/odyssey-erp/landhub/internal/auth"
	"github.com/odyssey-erp/landhub/internal/listings"
	"github.com/odyssey-erp/landhub/internal/observability"
	"github.com/odyssey-erp/landhub/internal/platform/cache"
	"github.com/odyssey-erp/landhub/internal/platform/db"
	"github.com/odyssey-erp/landhub/internal/ratelimit"
	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
	"github.com/odyssey-erp/landhub/internal/upload"
	"github.com/odyssey-erp/landhub/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("landhub exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.PGMigrate {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			return err
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnIdleTime: 5 * time.Minute})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	var attemptStore ratelimit.Store
	switch cfg.RateLimitBackend {
	case app.BackendMemory:
		logger.Warn("login limiter uses process memory; counters are not shared between replicas")
		attemptStore = ratelimit.NewMemoryStore(nil)
	default:
		attemptStore = ratelimit.NewRedisStore(redisClient, "")
	}
	loginLimiter := ratelimit.NewLimiter(attemptStore, "login",
		ratelimit.Policy{MaxAttempts: cfg.LoginMaxAttempts, Window: cfg.LoginWindow}, logger, metrics)

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	auditFile, err := audit.OpenFileStore(cfg.AuditFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := auditFile.Close(); err != nil {
			logger.Warn("audit file close", slog.Any("error", err))
		}
	}()
	auditPG := audit.NewPGStore(dbpool)
	auditLogger := audit.NewLogger(audit.NewMultiStore(auditPG, auditFile), logger, metrics)

	userRepo := users.NewRepository(dbpool)
	authRepo := auth.NewRepository(dbpool, userRepo)
	authenticator := auth.NewAuthenticator(userRepo, logger)
	authGuard := auth.Middleware{Authenticator: authenticator, Logger: logger, Metrics: metrics}
	rbacGuard := rbac.Middleware{Logger: logger, Metrics: metrics}

	authService := auth.NewService(authRepo, loginLimiter, logger)
	authHandler := auth.NewHandler(logger, authService, userRepo, sessionManager, csrfManager, authGuard)
	usersHandler := users.NewHandler(logger, users.NewService(userRepo, auditLogger, logger), rbacGuard)
	listingsHandler := listings.NewHandler(logger, listings.NewService(listings.NewRepository(dbpool), auditLogger), rbacGuard)
	uploadHandler := upload.NewHandler(logger, upload.NewValidator(storage, logger, metrics), auditLogger, cfg.UploadMaxBytes)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(auditPG))

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthMiddleware:  authGuard,
		RBACMiddleware:  rbacGuard,
		AuthHandler:     authHandler,
		UsersHandler:    usersHandler,
		ListingsHandler: listingsHandler,
		UploadHandler:   uploadHandler,
		AuditHandler:    auditHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStorage(ctx context.Context, cfg *app.Config) (upload.BlobStorage, error) {
	if cfg.UploadBackend == app.BackendS3 {
		storage, err := upload.NewS3Storage(ctx, upload.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			Prefix:          "uploads",
		})
		if err != nil {
			return nil, err
		}
		return storage, nil
	}
	storage, err := upload.NewFilesystemStorage(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return storage, nil
}

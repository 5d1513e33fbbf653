package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/app"
	"github.com/odyssey-school/odyssey-school/internal/audit"
	audithttp "github.com/odyssey-school/odyssey-school/internal/audit/http"
	"github.com/odyssey-school/odyssey-school/internal/auth"
	"github.com/odyssey-school/odyssey-school/internal/observability"
	"github.com/odyssey-school/odyssey-school/internal/platform/cache"
	"github.com/odyssey-school/odyssey-school/internal/platform/db"
	"github.com/odyssey-school/odyssey-school/internal/roles"
	"github.com/odyssey-school/odyssey-school/internal/shared"
	"github.com/odyssey-school/odyssey-school/internal/view"
	"github.com/odyssey-school/odyssey-school/jobs"
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

	// A bad route table must stop startup before anything listens.
	classifier, err := access.LoadClassifier(cfg.AccessRoutesFile)
	if err != nil {
		logger.Error("load route table", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.Postgres())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		// Role lookups fall back to Postgres when Redis is down.
		logger.Warn("redis unavailable, role cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	cookies := shared.NewSessionCookies(cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	tokenCfg := auth.TokenConfig{Secret: []byte(cfg.SessionSecret), Issuer: cfg.SessionIssuer, TTL: cfg.SessionTTL}
	issuer, err := auth.NewIssuer(tokenCfg)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	verifier, err := auth.NewVerifier(tokenCfg)
	if err != nil {
		logger.Error("init token verifier", slog.Any("error", err))
		os.Exit(1)
	}

	rolesRepo := roles.NewRepository(dbpool)
	roleSource := roles.NewCachedSource(redisClient, rolesRepo, cfg.RoleCacheTTL)
	rolesService := roles.NewService(rolesRepo, roleSource, logger)

	engine, err := access.NewEngine(access.EngineConfig{
		Classifier:    classifier,
		Verifier:      verifier,
		Roles:         roleSource,
		VerifyTimeout: cfg.AccessVerifyTimeout,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("init access engine", slog.Any("error", err))
		os.Exit(1)
	}

	sink, err := newAuditSink(cfg, dbpool)
	if err != nil {
		logger.Error("init audit sink", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeQuietly(logger, "audit sink", sink.closer)

	auditLogger, err := audit.NewLogger(sink.store, audit.Options{
		Timeout:     cfg.AuditTimeout,
		MaxInFlight: cfg.AuditMaxInFlight,
		Logger:      logger,
		Observer:    metrics,
	})
	if err != nil {
		logger.Error("init audit logger", slog.Any("error", err))
		os.Exit(1)
	}

	gate, err := access.NewGate(access.GateConfig{
		Engine:   engine,
		Cookies:  cookies,
		Auditor:  auditLogger,
		Observer: metrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("init access gate", slog.Any("error", err))
		os.Exit(1)
	}

	authService := auth.NewService(auth.NewRepository(dbpool), issuer)
	authHandler := auth.NewHandler(logger, authService, cookies, verifier, auditLogger, templates)
	rolesHandler := roles.NewHandler(logger, rolesService)
	auditHandler := audithttp.NewHandler(logger, sink.timeline)

	var jobHandler *jobs.Handler
	if cfg.AuditSink == app.AuditSinkQueue {
		inspector := asynq.NewInspector(cfg.Redis().Asynq())
		defer closeQuietly(logger, "inspector", inspector)
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Templates:    templates,
		Gate:         gate,
		AuthHandler:  authHandler,
		RolesHandler: rolesHandler,
		AuditHandler: auditHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("audit_sink", cfg.AuditSink))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if err := auditLogger.Close(shutdownCtx); err != nil {
		logger.Warn("audit drain", slog.Any("error", err))
	}
}

type auditSink struct {
	store    audit.Store
	timeline audithttp.TimelineService
	closer   io.Closer
}

// newAuditSink picks the access log store. The queue sink still reads the
// timeline from Postgres, where the worker writes.
func newAuditSink(cfg *app.Config, pool *pgxpool.Pool) (auditSink, error) {
	switch cfg.AuditSink {
	case app.AuditSinkPostgres:
		pg := audit.NewPGStore(pool)
		return auditSink{store: pg, timeline: pg}, nil
	case app.AuditSinkQueue:
		client := asynq.NewClient(cfg.Redis().Asynq())
		return auditSink{store: audit.NewQueueStore(client), timeline: audit.NewPGStore(pool), closer: client}, nil
	case app.AuditSinkMemory:
		mem := audit.NewMemoryStore()
		return auditSink{store: mem, timeline: mem}, nil
	default:
		return auditSink{}, fmt.Errorf("unsupported audit sink %q", cfg.AuditSink)
	}
}

func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn(name+" close", slog.Any("error", err))
	}
}

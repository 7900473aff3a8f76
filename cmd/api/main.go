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

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"call-assistant/internal/audit"
	"call-assistant/internal/auth"
	"call-assistant/internal/config"
	"call-assistant/internal/dialogue"
	"call-assistant/internal/generator"
	"call-assistant/internal/reporting"
	"call-assistant/internal/sessions"
	"call-assistant/internal/telephony"
	"call-assistant/internal/tenants"
	"call-assistant/pkg/logger"
	"call-assistant/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := tenants.Migrate(rootCtx, db); err != nil {
		log.Error("tenants migration failed", "err", err)
		os.Exit(1)
	}
	if err := audit.Migrate(rootCtx, db); err != nil {
		log.Error("audit migration failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	gen, err := generator.NewGemini(rootCtx, generator.Options{
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		Temperature: cfg.Generator.Temperature,
		MaxTokens:   cfg.Generator.MaxTokens,
	})
	if err != nil {
		log.Error("generator init failed", "err", err)
		os.Exit(1)
	}

	directory := tenants.NewCachedDirectory(tenants.NewPostgresDirectory(db), rdb, cfg.Redis.TenantCacheTTL)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	activity := sessions.NewActivityIndex(rdb, cfg.Session.IdleTimeout)

	store := sessions.NewStore()
	defer store.Close()
	go store.Run(rootCtx, cfg.Session.SweepInterval, cfg.Session.IdleTimeout, func(ctx context.Context, callIDs []string) {
		log.Info("sessions expired", "count", len(callIDs))
		if err := activity.Remove(ctx, callIDs...); err != nil {
			log.Warn("activity index cleanup failed", "err", err)
		}
	})

	controller := &dialogue.Controller{
		Tenants:   tenants.NewResolver(directory),
		Sessions:  store,
		Generator: gen,
		Recorder:  auditSvc,
		Activity:  activity,
		Timeout:   cfg.Generator.Timeout,
	}
	if cfg.Dialogue.FAQShortcuts {
		controller.Prefilter = dialogue.KeywordPrefilter{}
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:      cfg,
		auth:     authManager,
		dialogue: controller,
		store:    store,
		reports:  reporting.NewService(auditSvc),
		activity: activity,
		render: telephony.RenderOptions{
			Voice:         cfg.Twilio.Voice,
			ActionURL:     cfg.Twilio.WebhookBaseURL + voiceWebhookPath,
			GatherTimeout: cfg.Twilio.GatherTimeout,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "model", cfg.Generator.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	log.Info("shutdown complete", "sessions_dropped", store.Len())
}

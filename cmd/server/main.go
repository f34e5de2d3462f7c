package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"medconsult/internal/agent"
	"medconsult/internal/config"
	"medconsult/internal/consultation"
	"medconsult/internal/diagnosis"
	"medconsult/internal/drugs"
	"medconsult/internal/health"
	"medconsult/internal/metrics"
	"medconsult/internal/platform/telegram"
	"medconsult/internal/progress"
	"medconsult/internal/report"
	"medconsult/internal/resilience"
	"medconsult/internal/server"
	"medconsult/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database. The service degrades to stateless operation when the
	// database is unreachable.
	db := connectDB(cfg.DatabaseURL, logger)
	var repo consultation.Repository
	if db != nil {
		runMigrations(cfg.MigrationsPath, cfg.DatabaseURL, logger)
		repo = consultation.NewRepository(db)
		defer db.Close()
	}

	// Upstream model clients.
	asrClient := agent.NewWhisperClient(cfg.Models.ASR.BaseURL, cfg.Models.ASR.APIKey, cfg.Models.ASR.Model)
	medicalClient := agent.NewMedicalLLMClient(cfg.Models.Medical.BaseURL, cfg.Models.Medical.APIKey, cfg.Models.Medical.Model)
	ttsClient := agent.NewTTSClient(cfg.Models.TTS.BaseURL, cfg.Models.TTS.Voice)
	fallbackClient := agent.NewFallbackClient()

	// Metrics.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(promRegistry)

	// Resilience: one breaker-wrapped retry budget per upstream service.
	registry := resilience.NewRegistry()
	registerService(registry, consultation.ServiceASR, cfg.Models.ASR, appMetrics, logger)
	registerService(registry, consultation.ServiceMedical, cfg.Models.Medical, appMetrics, logger)
	registerService(registry, consultation.ServiceTTS, cfg.Models.TTS, appMetrics, logger)

	// Health probes.
	checker := health.NewChecker(logger,
		health.ProbeFunc{ProbeName: "asr", Fn: asrClient.Ping},
		health.ProbeFunc{ProbeName: "medical_model", Fn: medicalClient.Ping},
		health.ProbeFunc{ProbeName: "tts", Fn: ttsClient.Ping},
	)
	if db != nil {
		checker.Register(health.ProbeFunc{ProbeName: "database", Fn: db.PingContext})
	}

	// WebSocket hub pushes health plus breaker state every few seconds.
	hub := ws.NewHub(ws.HealthSourceFunc(func(ctx context.Context) interface{} {
		snap := checker.Snapshot(ctx)
		return map[string]interface{}{
			"status":           snap.Status,
			"services":         snap.Services,
			"circuit_breakers": registry.Stats(),
		}
	}), appMetrics.WSClients, logger)

	tracker := progress.NewTracker(hub, logger)

	// Emergency escalation channel.
	var reportSvc *report.Service
	if cfg.TelegramBotToken != "" && cfg.DoctorChatID != 0 {
		reportSvc = report.NewService(telegram.NewClient(cfg.TelegramBotToken), cfg.DoctorChatID, logger)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN or DOCTOR_CHAT_ID not set, emergency escalation disabled")
		reportSvc = report.NewService(nil, 0, logger)
	}

	consultationSvc := consultation.NewService(consultation.ServiceParams{
		Repo:       repo,
		ASR:        asrClient,
		Medical:    medicalClient,
		Fallback:   fallbackClient,
		TTS:        ttsClient,
		Report:     reportSvc,
		Resilience: registry,
		Tracker:    tracker,
		Metrics:    appMetrics,
		Logger:     logger,
	})

	diagnosisSvc := diagnosis.NewService(
		diagnosis.AnalyzerFunc(func(ctx context.Context, s *consultation.Symptoms, p *consultation.Patient) (*consultation.MedicalResponse, error) {
			return consultationSvc.AnalyzeSymptoms(ctx, s, p), nil
		}),
		hub, logger)

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				diagnosisSvc.CleanupExpired()
			}
		}
	}()

	drugSvc := drugs.NewService(logger)

	handler := server.NewHandler(consultationSvc, diagnosisSvc, drugSvc, reportSvc, registry, checker, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(server.RequestLogger(logger))
	r.Use(server.CORS)
	r.Use(server.RateLimit(cfg.RateLimitPerMinute))

	server.RegisterRoutes(r, handler, hub,
		promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func connectDB(connStr string, logger *zap.Logger) *sql.DB {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			logger.Info("connected to database")
			return db
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	logger.Warn("database unavailable, continuing without persistence", zap.Error(err))
	return nil
}

func runMigrations(migrationsPath, databaseURL string, logger *zap.Logger) {
	m, err := migrate.New(migrationsPath, databaseURL)
	if err != nil {
		logger.Error("migration init failed", zap.Error(err))
		return
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Error("migration up failed", zap.Error(err))
		return
	}
	logger.Info("migrations applied")
}

// registerService wires a wrapper into the registry and mirrors breaker
// transitions into the state gauge.
func registerService(registry *resilience.Registry, name string, svcCfg config.ServiceConfig, m *metrics.Metrics, logger *zap.Logger) {
	w := registry.Register(name, svcCfg.ResilienceConfig())
	m.SetBreakerState(name, int(resilience.StateClosed))
	w.Breaker().OnStateChange(func(name string, from, to resilience.State) {
		logger.Warn("circuit breaker state change",
			zap.String("service", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		m.SetBreakerState(name, int(to))
	})
}

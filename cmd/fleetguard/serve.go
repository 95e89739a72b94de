package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fleetguard/internal/analysis"
	"fleetguard/internal/auth"
	"fleetguard/internal/checklist"
	"fleetguard/internal/config"
	"fleetguard/internal/db"
	"fleetguard/internal/events"
	httphandler "fleetguard/internal/http"
	"fleetguard/internal/http/middleware"
	"fleetguard/internal/inspection"
	"fleetguard/internal/report"
	"fleetguard/internal/repository"
	"fleetguard/internal/service"
	"fleetguard/internal/session"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = db.NewRedis(cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to redis")
			return err
		}
		defer redisClient.Close()
	}

	store, limiter, err := buildSessionStore(ctx, cfg, redisClient)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session store")
		return err
	}

	cl, err := checklist.Load(cfg.Inspection.ChecklistPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Inspection.ChecklistPath).Msg("failed to load checklist")
		return err
	}
	log.Info().Str("version", cl.Version).Str("sha256", cl.SHA256).Int("items", cl.Len()).Msg("checklist loaded")

	policy, err := inspection.ParsePolicy(cfg.Analysis.Policy)
	if err != nil {
		return err
	}

	maxParallel := cfg.Analysis.MaxParallel
	if need := cl.MaxRequiredPhotos(); maxParallel < need {
		log.Warn().Int("configured", maxParallel).Int("required", need).
			Msg("ANALYSIS_MAX_PARALLEL below the largest photo count, raising it")
		maxParallel = need
	}
	analyzer := analysis.NewFanout(buildVision(ctx, cfg, log), cfg.Analysis.Timeout, maxParallel, log)

	reportStore, err := buildReportStore(ctx, cfg.Report)
	if err != nil {
		log.Error().Err(err).Msg("failed to create report store")
		return err
	}
	renderer := report.NewRenderer(reportStore, log)

	hub := events.NewHub(log)
	go hub.Run(ctx)

	workerRepo := repository.NewWorkerRepository(database)
	vehicleRepo := repository.NewVehicleRepository(database)
	inspectionRepo := repository.NewInspectionRepository(database)
	metricRepo := repository.NewMetricRepository(database)

	vehicleService := service.NewVehicleService(vehicleRepo)
	workerService := service.NewWorkerService(workerRepo)
	inspectionService := service.NewInspectionService(inspectionRepo, metricRepo, renderer, log)
	dashboardService := service.NewDashboardService(inspectionRepo, metricRepo)

	managerCfg := inspection.Config{
		Rules: inspection.Rules{
			MinComment: cfg.Inspection.CommentMinLength,
			MaxComment: cfg.Inspection.CommentMaxLength,
		},
		Policy: policy,
		Events: hub,
	}
	if cfg.Demo.Enabled {
		managerCfg.DemoOperatorID = cfg.Demo.WorkerID
	}
	manager := inspection.NewManager(cl, analyzer, inspectionService, inspectionService, vehicleService, managerCfg, log)
	sessionService := service.NewSessionService(manager, store, log)

	issuer := auth.NewIssuer(cfg.Auth.AccessSecret, cfg.Auth.AccessTTL)
	authService := service.NewAuthService(workerRepo, issuer, limiter, cfg.Demo, log)
	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(httphandler.Services{
		Auth:        authService,
		Sessions:    sessionService,
		Inspections: inspectionService,
		Workers:     workerService,
		Vehicles:    vehicleService,
		Dashboard:   dashboardService,
	}, hub, cfg.Photo, cfg.HTTP.AllowedOrigins, func(ctx context.Context) error {
		return db.HealthCheck(ctx, database)
	}, log)
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), cfg.Environment, cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", addr).
		Str("session_store", cfg.Inspection.SessionStore).
		Str("policy", string(policy)).
		Bool("demo", cfg.Demo.Enabled).
		Msg("starting fleetguard")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}

func buildSessionStore(ctx context.Context, cfg *config.Config, client *redis.Client) (session.Store, session.LoginLimiter, error) {
	var limiter session.LoginLimiter = session.NewMemoryLimiter()
	if client != nil {
		limiter = session.NewRedisLimiter(client)
	}

	if cfg.Inspection.SessionStore == config.SessionStoreRedis {
		store, err := session.NewRedisStore(client, cfg.Inspection.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, limiter, nil
	}

	store := session.NewMemoryStore(cfg.Inspection.SessionTTL)
	go store.RunJanitor(ctx, janitorInterval)
	return store, limiter, nil
}

func buildVision(ctx context.Context, cfg *config.Config, log zerolog.Logger) analysis.Vision {
	if cfg.Analysis.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, photo analysis disabled")
		return analysis.Disabled{}
	}
	vision, err := analysis.NewGeminiVision(ctx, cfg.Analysis.GeminiAPIKey, cfg.Analysis.GeminiModel, cfg.Photo.MaxDimension, log)
	if err != nil {
		log.Error().Err(err).Msg("gemini unavailable, photo analysis disabled")
		return analysis.Disabled{}
	}
	return vision
}

func buildReportStore(ctx context.Context, cfg config.ReportConfig) (report.Store, error) {
	if cfg.S3Bucket != "" {
		return report.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix)
	}
	return report.NewLocalStore(cfg.Dir)
}

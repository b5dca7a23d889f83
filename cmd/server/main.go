package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Aun-shahid/TherapEase/internal/config"
	"github.com/Aun-shahid/TherapEase/internal/database"
	"github.com/Aun-shahid/TherapEase/internal/handler"
	"github.com/Aun-shahid/TherapEase/internal/jobs"
	"github.com/Aun-shahid/TherapEase/internal/middleware"
	"github.com/Aun-shahid/TherapEase/internal/redis"
	"github.com/Aun-shahid/TherapEase/internal/repository"
	"github.com/Aun-shahid/TherapEase/internal/service"
	"github.com/Aun-shahid/TherapEase/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	patientRepo := repository.NewPatientProfileRepository(db.DB)
	therapistRepo := repository.NewTherapistProfileRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	pairingRepo := repository.NewPatientPairingRequestRepository(db.DB)

	lifecycleService := service.NewSessionLifecycleService(sessionRepo, userRepo, patientRepo, therapistRepo)
	linkingService := service.NewAccountLinkingService(db, userRepo, patientRepo, sessionRepo)
	accountService := service.NewAccountService(
		db, userRepo, patientRepo, therapistRepo, linkingService, cfg.DefaultMaxPatients,
	)
	pairingService := service.NewPairingService(
		db, userRepo, patientRepo, therapistRepo, pairingRepo, cfg.PairingRequestTTL(),
	)
	dashboardService := service.NewDashboardService(
		userRepo, patientRepo, therapistRepo, sessionRepo, pairingRepo,
	)

	hub := ws.NewHub()
	lifecycleService.SetNotifier(hub)
	wsHandler := ws.NewHandler(
		hub, userRepo, sessionRepo, lifecycleService,
		cfg.HeartbeatInterval(), cfg.IdleTimeout(),
	)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(redisClient.Client)

	accountHandler := handler.NewAccountHandler(accountService)
	sessionHandler := handler.NewSessionHandler(lifecycleService)
	patientHandler := handler.NewPatientHandler(accountService, pairingService, dashboardService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.Mount("/auth", accountHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)

			r.Get("/auth/me", accountHandler.Me)
			r.Mount("/sessions", sessionHandler.Routes())
			r.Mount("/patients", patientHandler.Routes())
			r.Mount("/dashboard", dashboardHandler.Routes())
		})
	})

	// websocket auth happens inside the handler; the HTTP timeout middleware
	// must not wrap long-lived connections
	r.Get("/ws/therapy-session/{roomID}", wsHandler.ServeHTTP)

	cleanupJob := jobs.NewCleanupJob(pairingRepo, config.CleanupJobInterval, config.PairingRequestRetention)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/auth"
	"github.com/freeeve/repower/internal/config"
	"github.com/freeeve/repower/internal/handler"
	"github.com/freeeve/repower/internal/logger"
	"github.com/freeeve/repower/internal/middleware"
	"github.com/freeeve/repower/internal/repository/postgres"
	redisrepo "github.com/freeeve/repower/internal/repository/redis"
	"github.com/freeeve/repower/internal/service"
	"github.com/freeeve/repower/pkg/repower"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(cfg.Log)
	log.Info().
		Int("commandsPerTurn", cfg.Rules.CommandsPerTurn).
		Bool("devLogin", cfg.DevLogin).
		Bool("google", cfg.GoogleEnabled()).
		Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	userRepo := postgres.NewUserRepo(db)
	matchRepo := postgres.NewMatchRepo(db)
	turnRepo := postgres.NewTurnRepo(db)
	notifRepo := postgres.NewNotificationRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	var provider handler.IdentityProvider
	if cfg.GoogleEnabled() {
		provider = auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	notifSvc := service.NewNotificationService(notifRepo, wsHub)
	turnSvc := service.NewTurnService(matchRepo, turnRepo, redisClient, service.TurnOptions{
		Rules:          cfg.Rules,
		ResolveLockTTL: cfg.ResolveLockTTL,
	}, wsHub, notifSvc)
	matchSvc := service.NewMatchService(matchRepo, turnRepo, redisClient, turnSvc)
	commandSvc := service.NewCommandService(turnSvc, redisClient)

	// Ready listener (cross-instance resolution and recovery sweep)
	readyListener := service.NewReadyListener(redisClient.Underlying(), turnSvc, matchRepo, wsHub, cfg.ReadyPollInterval)

	router := handler.NewRouter(handler.Handlers{
		Auth:         handler.NewAuthHandler(provider, jwtMgr, userRepo, cfg.DevLogin),
		User:         handler.NewUserHandler(userRepo),
		Match:        handler.NewMatchHandler(matchSvc),
		Command:      handler.NewCommandHandler(commandSvc),
		Turn:         handler.NewTurnHandler(turnSvc),
		Catalog:      handler.NewCatalogHandler(repower.Maps(), repower.StandardCatalog()),
		Notification: handler.NewNotificationHandler(notifSvc),
		WS:           handler.NewWSHandler(wsHub, jwtMgr, matchSvc),
	}, jwtMgr)

	// Apply global middleware
	root := middleware.Chain(router, middleware.Recover, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Rehydrate Redis from Postgres and resolve turns that stalled while down
	if err := turnSvc.RecoverMatches(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to recover matches (non-fatal)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go readyListener.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

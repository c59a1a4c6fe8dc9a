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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/projectcritics/criticoni/config"
	"github.com/projectcritics/criticoni/db"
	"github.com/projectcritics/criticoni/handlers"
	"github.com/projectcritics/criticoni/realtime"
	"github.com/projectcritics/criticoni/repositories"
	api "github.com/projectcritics/criticoni/routes"
	"github.com/projectcritics/criticoni/services"
	"github.com/projectcritics/criticoni/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	cloudflareUploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2Bucket,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	wsHub := realtime.NewHub()
	go wsHub.Run()
	presence := realtime.NewPresence()
	relay := realtime.NewRelay()
	mesh := realtime.NewMesh()
	logger.Info("realtime layer started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	roomRepo := repositories.NewPostgresRoomRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo)
	tournamentService := services.NewTournamentService(tournamentRepo, cloudflareUploader, logger)
	roomService := services.NewRoomService(
		roomRepo,
		tournamentRepo,
		presence,
		mesh,
		wsHub,
		logger,
		services.WithAnimationDelay(cfg.VoteAnimationDelay),
		services.WithEmptyRoomGrace(cfg.EmptyRoomGrace),
	)
	logger.Info("services initialized")

	// Periodic empty-room sweep catches rooms that were emptied while the
	// process was down and never got their grace-delayed teardown.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		logger.Info("empty-room sweeper started", slog.Duration("interval", cfg.SweepInterval))

		if deleted, err := roomService.SweepEmptyRooms(context.Background()); err != nil {
			logger.Error("sweeper: initial run failed", slog.Any("error", err))
		} else if deleted > 0 {
			logger.Info("sweeper: deleted empty rooms", slog.Int("count", deleted))
		}

		for range ticker.C {
			deleted, err := roomService.SweepEmptyRooms(context.Background())
			if err != nil {
				logger.Error("sweeper: periodic run failed", slog.Any("error", err))
				continue
			}
			if deleted > 0 {
				logger.Info("sweeper: deleted empty rooms", slog.Int("count", deleted))
			}
		}
	}()

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	userHandler := handlers.NewUserHandler(userService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	roomHandler := handlers.NewRoomHandler(roomService)
	webSocketHandler := handlers.NewWebSocketHandler(
		wsHub, presence, relay, roomService, userService, cfg.JWTSecretKey, logger)
	adminHandler := handlers.NewAdminHandler(roomService, cfg.AdminToken)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		authHandler,
		userHandler,
		tournamentHandler,
		roomHandler,
		webSocketHandler,
		adminHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

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

	"github.com/fantaleague/auction-system/config"
	"github.com/fantaleague/auction-system/db"
	"github.com/fantaleague/auction-system/handlers"
	"github.com/fantaleague/auction-system/realtime"
	"github.com/fantaleague/auction-system/repositories"
	api "github.com/fantaleague/auction-system/routes"
	"github.com/fantaleague/auction-system/services"
	"github.com/fantaleague/auction-system/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
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

	// Архив продаж в Cloudflare R2 — опционален
	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("settlement archiving disabled: R2 is not configured")
	}

	// Инициализация WebSocket Hub
	wsHub := realtime.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	notifier, err := realtime.NewHubNotifier(wsHub, cfg.DedupWindow, logger)
	if err != nil {
		logger.Error("failed to initialize notifier", slog.Any("error", err))
		os.Exit(1)
	}

	// Инициализация репозиториев
	leagueRepo := repositories.NewPostgresLeagueRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	lotRepo := repositories.NewPostgresLotRepository(dbConn)
	bidRepo := repositories.NewPostgresBidRepository(dbConn)
	proxyRepo := repositories.NewPostgresProxyInstructionRepository(dbConn)
	ledgerRepo := repositories.NewPostgresLedgerRepository(dbConn)
	timerRepo := repositories.NewPostgresResponseTimerRepository(dbConn)
	cooldownRepo := repositories.NewPostgresCooldownRepository(dbConn)
	rosterRepo := repositories.NewPostgresRosterRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	txRunner := services.NewSQLTxRunner(dbConn)
	guard := services.NewInFlightGuard(cfg.InFlightTTL, 4096)

	budgetService := services.NewBudgetService(participantRepo, proxyRepo, ledgerRepo)
	resolver := services.NewAutoBidResolver(participantRepo, proxyRepo, bidRepo, lotRepo, timerRepo, budgetService, logger)
	bidService := services.NewBidService(
		txRunner,
		guard,
		leagueRepo,
		playerRepo,
		participantRepo,
		rosterRepo,
		lotRepo,
		bidRepo,
		proxyRepo,
		timerRepo,
		cooldownRepo,
		budgetService,
		resolver,
		notifier,
		logger,
	)
	timerService := services.NewTimerService(
		txRunner,
		leagueRepo,
		participantRepo,
		lotRepo,
		timerRepo,
		cooldownRepo,
		bidService,
		logger,
	)
	archiveService := services.NewArchiveService(uploader, logger)
	closingService := services.NewClosingService(
		txRunner,
		lotRepo,
		proxyRepo,
		rosterRepo,
		timerRepo,
		participantRepo,
		budgetService,
		archiveService,
		notifier,
		logger,
		cfg.SweepWorkers,
	)
	logger.Info("Services initialized")

	// Планировщик: закрытие просроченных лотов и авто-fold просроченных
	// таймеров ответа
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		logger.Info("auction scheduler started", slog.Duration("interval", cfg.SweepInterval))

		for {
			select {
			case <-schedulerCtx.Done():
				logger.Info("auction scheduler stopped")
				return
			case <-ticker.C:
				now := time.Now()
				if err := closingService.Sweep(schedulerCtx, now); err != nil {
					logger.Error("scheduler: closing sweep failed", slog.Any("error", err))
				}
				if _, err := timerService.ExpireOverdue(schedulerCtx, now); err != nil {
					logger.Error("scheduler: timer expiry failed", slog.Any("error", err))
				}
			}
		}
	}()

	// Инициализация обработчиков HTTP
	auctionHandler := handlers.NewAuctionHandler(bidService, timerService, budgetService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, timerService, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.JWTSecretKey, auctionHandler, webSocketHandler)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
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

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		stopScheduler()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/adapter/geocoder"
	"github.com/saferoute/service-navigation/internal/application"
	"github.com/saferoute/service-navigation/internal/auth"
	"github.com/saferoute/service-navigation/internal/config"
	"github.com/saferoute/service-navigation/internal/database"
	"github.com/saferoute/service-navigation/internal/domain/safety"
	"github.com/saferoute/service-navigation/internal/events"
	"github.com/saferoute/service-navigation/internal/handler"
	"github.com/saferoute/service-navigation/internal/logger"
	"github.com/saferoute/service-navigation/internal/middleware"
	"github.com/saferoute/service-navigation/internal/repository"
)

const serviceName = "service-safety-ranker"

func main() {
	// Load configuration
	cfg, err := config.LoadSafety()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName, zap.String("port", cfg.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.Connect(ctx, cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&repository.ObservationModel{}); err != nil {
		log.Fatal("failed to run auto-migration", zap.Error(err))
	}
	log.Info("database migration completed")

	clock := clockwork.NewRealClock()
	repo := repository.NewGormObservationRepository(db)

	// Import seed data into an empty store
	if cfg.SeedFile != "" {
		if _, err := repository.SeedIfEmpty(ctx, repo, cfg.SeedFile, clock.Now(), log); err != nil {
			log.Warn("failed to import safety seed data", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
	}

	// Initialize application service
	geo := geocoder.NewCachingGeocoder(
		geocoder.NewNominatimClient(geocoder.Config{
			BaseURL:   cfg.GeocoderURL,
			UserAgent: cfg.GeocoderUserAgent,
			Timeout:   cfg.HTTPTimeout,
		}, log),
		cfg.GeocodeCacheSize,
	)
	safetyService := application.NewSafetyService(repo, geo, safety.NewWeightedScoringStrategy(), clock, log)

	// Start safety observation consumer
	if cfg.KafkaConfig.Enabled() {
		consumer := events.NewSafetyObservationConsumer(
			cfg.KafkaConfig.Brokers,
			cfg.KafkaConfig.GroupPrefix+"safety-ranker",
			safetyService,
			log,
		)
		defer func() { _ = consumer.Close() }()

		go func() {
			log.Info("starting safety observation consumer")
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("safety observation consumer error", zap.Error(err))
			}
		}()
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	handler.NewHealthHandler(serviceName, map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}).RegisterRoutes(router)
	handler.NewSafetyHandler(safetyService).RegisterRoutes(&router.RouterGroup)
	handler.NewAdminSafetyHandler(safetyService).RegisterRoutes(&router.RouterGroup, jwtManager)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info(serviceName + " stopped")
}

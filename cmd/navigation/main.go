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
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/adapter/directions"
	"github.com/saferoute/service-navigation/internal/adapter/geocoder"
	"github.com/saferoute/service-navigation/internal/adapter/ranker"
	"github.com/saferoute/service-navigation/internal/application"
	"github.com/saferoute/service-navigation/internal/config"
	"github.com/saferoute/service-navigation/internal/events"
	"github.com/saferoute/service-navigation/internal/handler"
	"github.com/saferoute/service-navigation/internal/logger"
	"github.com/saferoute/service-navigation/internal/middleware"
)

const serviceName = "service-navigation"

func main() {
	// Load configuration
	cfg, err := config.LoadNavigation()
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

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("ranker_url", cfg.RankerURL),
		zap.Bool("kafka_enabled", cfg.KafkaConfig.Enabled()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize collaborators
	geo := geocoder.NewCachingGeocoder(
		geocoder.NewNominatimClient(geocoder.Config{
			BaseURL:   cfg.GeocoderURL,
			UserAgent: cfg.GeocoderUserAgent,
			Timeout:   cfg.HTTPTimeout,
		}, log),
		cfg.GeocodeCacheSize,
	)
	collab := application.Collaborators{
		Geocoder: geo,
		Ranker:   ranker.NewClient(cfg.RankerURL, cfg.HTTPTimeout, log),
		Directions: directions.NewOpenRouteClient(directions.Config{
			BaseURL: cfg.DirectionsURL,
			APIKey:  cfg.DirectionsAPIKey,
			Profile: cfg.DirectionsProfile,
			Timeout: cfg.HTTPTimeout,
		}, log),
	}
	if cfg.DirectionsAPIKey == "" {
		log.Warn("no directions API key configured; directions requests will be rejected upstream")
	}

	// Initialize speech and lifecycle event sinks
	var (
		speech    application.SpeechFactory
		publisher application.EventPublisher
	)
	speechDone := make(chan struct{})
	if cfg.KafkaConfig.Enabled() {
		producer := events.NewProducer(cfg.KafkaConfig.Brokers, serviceName, log)
		defer func() { _ = producer.Close() }()

		speechPublisher := events.NewSpeechPublisher(producer, cfg.SpeechBuffer, log)
		go func() {
			defer close(speechDone)
			speechPublisher.Run(ctx)
		}()
		speech = func(id uuid.UUID) application.SpeechSink { return speechPublisher.ForSession(id) }
		publisher = events.NewTopicPublisher(producer, events.TopicNavigationEvents)
	} else {
		close(speechDone)
		speech = func(id uuid.UUID) application.SpeechSink { return events.NewLogSpeech(id, log) }
		publisher = events.NewLogPublisher(log)
	}

	// Initialize application service
	manager := application.NewSessionManager(
		collab,
		speech,
		publisher,
		clockwork.NewRealClock(),
		application.SessionManagerConfig{
			TTL:           cfg.SessionTTL,
			SweepInterval: cfg.SweepInterval,
			Narrator: application.NarratorConfig{
				InitialDelay: cfg.InitialDelay,
				StepDelay:    cfg.StepDelay,
			},
		},
		log,
	)
	go manager.RunSweeper(ctx)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	handler.NewHealthHandler(serviceName, nil).RegisterRoutes(router)
	handler.NewSessionHandler(manager).RegisterRoutes(&router.RouterGroup)

	// A plan spans up to three sequential upstream timeouts.
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3*cfg.HTTPTimeout + 5*time.Second,
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	// Stop narration before the speech queue drains
	manager.Shutdown()
	cancel()
	<-speechDone

	log.Info(serviceName + " stopped")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/api"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/config"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/events"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/logging"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/observability"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/repository"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/weatherapi"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/youtube"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)
	logger := slog.Default()

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "db_driver", cfg.DB.Driver)

	openCtx, openCancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := repository.Open(openCtx, cfg.DB)
	if err != nil {
		openCancel()
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	if err := db.EnsureSchema(openCtx); err != nil {
		openCancel()
		db.Close()
		logging.Fatalf("Failed to ensure schema: %v", err)
	}
	openCancel()
	defer db.Close()

	metrics := observability.NewMetrics()
	weather := weatherapi.NewClient(cfg.Weather, metrics, logger)
	videos := youtube.NewClient(cfg.Video, metrics, logger)

	var queue api.EventQueue = events.Discard{}
	var dispatcher *events.Dispatcher
	if cfg.Events.Enabled() {
		dispatcher = events.NewDispatcher(
			events.NewKafkaPublisher(cfg.Events),
			cfg.Events.Workers,
			cfg.Events.BufferSize,
			metrics,
			logger,
		)
		// not tied to the signal: Stop drains what is queued
		dispatcher.Start(context.Background())
		queue = dispatcher
		slog.Info("observation events enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger, clockwork.NewRealClock()))
	router.Use(metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", logging.RequestIDHeader},
		AllowCredentials: false,
	}))

	handler := api.NewHandler(db, weather, videos, queue, metrics)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if dispatcher != nil {
		if err := dispatcher.Stop(); err != nil {
			slog.Error("event publisher shutdown error", "error", err)
		}
	}

	slog.Info("shutdown complete")
}

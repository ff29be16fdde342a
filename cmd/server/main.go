package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/hardwatch/hardwatch/pkg/api"
	"github.com/hardwatch/hardwatch/pkg/config"
	"github.com/hardwatch/hardwatch/pkg/discovery"
	"github.com/hardwatch/hardwatch/pkg/metrics"
	"github.com/hardwatch/hardwatch/pkg/models"
	"github.com/hardwatch/hardwatch/pkg/sampler"
	"github.com/hardwatch/hardwatch/pkg/sensors"
	"github.com/hardwatch/hardwatch/pkg/services"
	"github.com/hardwatch/hardwatch/pkg/storage"
)

// Version is the node version announced to peers.
const Version = "0.1.0"

// @title Hardwatch Node API
// @version 0.1
// @description API for the hardwatch distributed hardware monitoring node
// @BasePath /

func main() {
	// Configure Log Level from Environment Variable
	logLevelStr := os.Getenv("LOG_LEVEL")
	switch strings.ToLower(logLevelStr) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel) // Default to Info
	}
	logrus.Infof("Log level set to: %s", logrus.GetLevel().String())

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Open the durable store for rules and alert history
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logrus.Fatalf("Failed to open storage at %s: %v", cfg.Storage.Path, err)
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		logrus.Fatalf("Failed to migrate storage: %v", err)
	}
	repo := storage.NewRepository(db)

	// Build the local node identity and the peer directory
	self := discovery.NewLocalNode(ctx, cfg.Server.Port, Version)
	logrus.Infof("Local node %s (%s) at %s:%d", self.Name, self.ID, self.IPAddress, self.APIPort)

	directory := discovery.NewDirectory(self,
		time.Duration(cfg.Discovery.LivenessTimeoutSeconds)*time.Second,
		time.Duration(cfg.Discovery.SweepIntervalSeconds)*time.Second)

	// Initialize services
	store := metrics.NewStore(cfg.Sampling.HistoryPoints)

	ruleService, err := services.NewRuleService(ctx, repo, self.ID)
	if err != nil {
		logrus.Fatalf("Failed to create rule service: %v", err)
	}

	history, err := services.NewHistoryService(ctx, repo, cfg.Alerts.HistoryMaxRecords)
	if err != nil {
		logrus.Fatalf("Failed to create alert history: %v", err)
	}
	history.SetStatusSink(directory)

	broadcaster := services.NewBroadcaster(directory, directory.Self,
		time.Duration(cfg.Alerts.BroadcastTimeoutSeconds)*time.Second)

	// Local fires are recorded, then fanned out to peers off the sample path
	ruleService.SetEventHandler(func(event models.AlertEvent) {
		history.Record(event)
		go broadcaster.Broadcast(ctx, event)
	})

	// Start the sampler
	metricSampler := sampler.New(cfg.Sampling, sensors.BuiltinSources(), store, ruleService)
	metricSampler.Start()

	// Start peer discovery
	directory.Start()
	discoveryService := discovery.NewService(cfg.Discovery.ServiceType, directory)
	if err := discoveryService.Start(ctx); err != nil {
		logrus.Warnf("Peer discovery unavailable, running standalone: %v", err)
	}

	// Set up the Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// API routes
	apiHandler := api.NewAPIHandler(ruleService, history, store, directory, Version)
	apiHandler.SetupRoutes(e)

	// Swagger documentation
	e.GET("/swagger/*", echo.WrapHandler(httpSwagger.Handler()))

	// Create HTTP server
	// Use PORT environment variable if available, otherwise use config
	port := os.Getenv("PORT")
	if port == "" {
		port = fmt.Sprintf("%d", cfg.Server.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logrus.Infof("Starting server on port %s", port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	// Stop background work before the HTTP surface goes away
	metricSampler.Stop()
	discoveryService.Stop()
	directory.Stop()

	// Create a deadline for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Shutdown the server
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited properly")
}

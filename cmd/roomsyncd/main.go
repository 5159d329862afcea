package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tobur/calendar-module/internal/config"
	"github.com/Tobur/calendar-module/internal/provider/google"
	"github.com/Tobur/calendar-module/internal/scheduler"
	"github.com/Tobur/calendar-module/internal/store"
	"github.com/Tobur/calendar-module/internal/syncer"
	"github.com/Tobur/calendar-module/internal/web"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting room sync daemon...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	st, err := store.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Initialize provider adapters
	client := google.NewClient()
	refresher := google.NewTokenRefresher(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	guard := syncer.NewGuard(st, refresher)

	// Initialize sync components
	engine := syncer.NewEngine(st, client, guard, cfg.Sync.Window(), cfg.Sync.MaxPages)
	discovery := syncer.NewDiscovery(st, client, guard)
	webhooks := syncer.NewWebhookManager(st, client, guard, cfg.Google.EventWatchURL)
	dispatcher := syncer.NewDispatcher(st, engine)

	// Initialize scheduler
	intervals := scheduler.Intervals{
		Renew:      cfg.Sync.RenewInterval,
		StaleCheck: cfg.Sync.StaleInterval,
		Daily:      cfg.Sync.DailyInterval,
	}
	sched := scheduler.New(st, engine, discovery, webhooks, guard, intervals)

	// Initialize handlers
	handlers := web.NewHandlers(st, engine, dispatcher, sched)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(web.RequestLogger())

	// Setup routes
	web.SetupRoutes(router, handlers, cfg.RateLimiting.RPS, cfg.RateLimiting.Burst)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// Start background workers
	dispatcher.Start()
	sched.Start()

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop background workers
	sched.Stop()
	dispatcher.Stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

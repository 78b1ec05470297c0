package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	cfg "github.com/sand/chain-feed/backend/config"
	"github.com/sand/chain-feed/backend/internal/classifier"
	"github.com/sand/chain-feed/backend/internal/gateway"
	"github.com/sand/chain-feed/backend/internal/handlers"
	"github.com/sand/chain-feed/backend/internal/usecases"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Warn("Starting application with configuration",
		"debug", config.App.Debug,
		"chain", config.Blockchain.Name,
		"chain_id", config.ChainID,
		"rpc_url", config.RPCURL,
		"server_port", config.HTTP.Port,
		"feed_capacity", config.Feed.Capacity,
		"poll_interval", config.PollInterval)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to the upstream node
	chainGateway, err := gateway.Dial(ctx, logger, config.RPCURL, config.RequestTimeout)
	if err != nil {
		logger.Error("Failed to connect to RPC endpoint", "error", err)
		log.Fatal(err)
	}
	defer chainGateway.Close()

	// Create the feed pipeline
	feedService, err := usecases.NewFeedService(logger, config.Feed, chainGateway, classifier.New())
	if err != nil {
		logger.Error("Failed to create feed service", "error", err)
		log.Fatal(err)
	}

	if err = feedService.Start(ctx); err != nil {
		logger.Error("Failed to start feed service", "error", err)
		log.Fatal(err)
	}
	logger.Info("Feed pipeline started")

	// Create handlers
	websocketManager := handlers.NewWebSocketManager(logger)
	httpHandler := handlers.NewHTTPHandler(logger, feedService, chainGateway, config.Blockchain)
	wsHandler := handlers.NewWebSocketHandler(logger, feedService, websocketManager, config.BroadcastInterval)

	// Create router
	router := mux.NewRouter()

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Tear the pipeline down first so no further updates reach the sockets.
	feedService.Stop()
	websocketManager.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

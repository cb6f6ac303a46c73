package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/go-task-tracker/internal/auth"
	"github.com/chepyr/go-task-tracker/internal/config"
	"github.com/chepyr/go-task-tracker/internal/handlers"
	"github.com/chepyr/go-task-tracker/internal/manager"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	tracker := initManager(cfg)
	defer tracker.Close()

	handler := initHandlers(cfg, tracker)
	server := initServer(cfg, handler)
	startServer(server, cfg.ServerPort)
}

func initManager(cfg *config.Config) *manager.Manager {
	hasher, err := auth.NewHasher(cfg.PasswordHasher)
	if err != nil {
		log.Fatalf("Invalid password hasher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracker, err := manager.Open(ctx, manager.Config{
		Driver: cfg.DBDriver,
		DSN:    cfg.DSN(),
		Hasher: hasher,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return tracker
}

func initHandlers(cfg *config.Config, tracker *manager.Manager) *handlers.Handler {
	return &handlers.Handler{
		Tracker:     tracker,
		Sessions:    auth.NewSessionManager(cfg.JWTSecret, cfg.SessionTTL),
		RateLimiter: handlers.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
		WSHub:       handlers.NewWSHub(),
	}
}

func initServer(cfg *config.Config, handler *handlers.Handler) *http.Server {
	mux := http.NewServeMux()
	handler.Routes(mux)
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Shutdown does not touch hijacked websocket connections.
	server.RegisterOnShutdown(handler.WSHub.CloseAll)
	return server
}

func startServer(server *http.Server, port string) {
	log.Printf("Starting tracker server on :%s", port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}

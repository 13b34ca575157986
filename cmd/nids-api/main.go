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

	"Go2NetGuard/internal/api"
	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/query"
	"Go2NetGuard/internal/sink"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	handler := &api.Handler{
		StatsPath:   cfg.Publisher.StatsPath,
		AlertsPath:  cfg.Publisher.AlertsPath,
		AlertsLimit: cfg.API.AlertsLimit,
	}

	// Address lookups are served from the SQLite mirror, or from ClickHouse
	// when only that mirror is enabled.
	switch {
	case cfg.Sinks.SQLite.Enabled:
		db, err := sink.OpenSQLite(cfg.Sinks.SQLite.Path)
		if err != nil {
			log.Printf("SQLite mirror unavailable, address queries disabled: %v", err)
			break
		}
		defer db.Close()
		handler.IPs = db
	case cfg.Sinks.ClickHouse.Enabled:
		q, err := query.NewClickHouseQuerier(cfg.Sinks.ClickHouse)
		if err != nil {
			log.Printf("ClickHouse mirror unavailable, address queries disabled: %v", err)
			break
		}
		defer q.Close()
		handler.IPs = q
	}

	server := &http.Server{
		Addr:              cfg.API.ListenAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}

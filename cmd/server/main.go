package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cocreate-app/cocreate/backend/internal/api"
	"github.com/cocreate-app/cocreate/backend/internal/auth"
	"github.com/cocreate-app/cocreate/backend/internal/config"
	"github.com/cocreate-app/cocreate/backend/internal/db"
	"github.com/cocreate-app/cocreate/backend/internal/logger"
	"github.com/cocreate-app/cocreate/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)

	var database *db.Database
	var sessions *auth.Service
	if cfg.Auth.Enabled {
		database, err = db.New(cfg.Auth.DBPath)
		if err != nil {
			log.Error("failed to initialize database", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		sessions = auth.New(database, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
		log.Info("auth enabled", "db", cfg.Auth.DBPath)

		// Expired rows only stop a token from authorizing; without a
		// sweep they would still pile up for the life of the process.
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				n, err := database.DeleteExpiredSessions()
				if err != nil {
					log.Warn("session purge failed", "err", err)
					continue
				}
				if n > 0 {
					log.Info("purged expired sessions", "count", n)
				}
			}
		}()
	}

	hub := ws.NewHub(log)
	go hub.Run()

	apiHandler := api.New(hub, database, sessions, cfg.Executor.URL, cfg.Executor.Timeout, log)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      apiHandler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info("relay starting", "addr", cfg.HTTP.Addr)
	log.Info("endpoints",
		"ws", "/ws?token={token}",
		"health", "GET /health",
		"stats", "GET /api/stats",
		"compile", "POST /compile",
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("listen and serve", "err", err)
		os.Exit(1)
	}
}

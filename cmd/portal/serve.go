package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ssc-dashboards/portal/internal/backend"
	"github.com/ssc-dashboards/portal/internal/config"
	"github.com/ssc-dashboards/portal/internal/content"
	"github.com/ssc-dashboards/portal/internal/database"
	"github.com/ssc-dashboards/portal/internal/logging"
	"github.com/ssc-dashboards/portal/internal/middleware"
	"github.com/ssc-dashboards/portal/internal/server"
	"github.com/ssc-dashboards/portal/internal/session"
	"github.com/ssc-dashboards/portal/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	revocations := store.NewRevocationStore(db)

	manager, err := session.NewManager(cfg.SessionSecret, session.WithMaxAge(cfg.SessionMaxAge))
	if err != nil {
		return fmt.Errorf("session keys: %w", err)
	}
	cookies := session.NewCookies(manager, revocations, logger.With("component", "session"))

	backendClient := backend.NewClient(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithRefreshLimit(rate.Limit(cfg.RefreshRate), max(1, int(cfg.RefreshRate))),
		backend.WithLogger(logger.With("component", "backend")),
	)

	srv, err := server.New(server.Config{
		Backend:        backendClient,
		Cookies:        cookies,
		Content:        content.NewStore(cfg.ContentDir),
		Origins:        middleware.NewOrigins(cfg.AllowedOrigins, cfg.WebsiteURL),
		WebsiteURL:     cfg.WebsiteURL,
		RegisterURL:    cfg.RegisterURL,
		StatusInterval: cfg.StatusInterval,
		TrustProxy:     cfg.TrustProxy,
	}, logger)
	if err != nil {
		return err
	}

	// No WriteTimeout: status sockets stay open for as long as the user
	// waits on the pending page.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx := cmd.Context()

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := revocations.DeleteExpired(); err != nil {
					logger.Error("cleanup revoked sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up revoked sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	errc := make(chan error, 1)
	go func() {
		logger.Info("portal starting", "addr", httpServer.Addr, "backend", cfg.BackendURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "open_sockets", srv.Hub().ClientCount())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}


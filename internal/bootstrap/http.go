package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/caregrid/caregrid/config"
	httpx "github.com/caregrid/caregrid/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// BuildHandler assembles the router from the service container.
func BuildHandler(cfg *HTTPServerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return httpx.NewRouter(httpx.RouterServices{
		Auth:       cfg.Services.Auth,
		Admission:  cfg.Services.Admission,
		Onboarding: cfg.Services.Onboarding,
		Cookies: httpx.CookieConfig{
			AccessName:  cfg.Config.Auth.AccessCookieName,
			RefreshName: cfg.Config.Auth.RefreshCookieName,
			Domain:      cfg.Config.Auth.CookieDomain,
		},
		PublicPrefixes:   cfg.Config.Auth.PublicPrefixes,
		TrustHeadersOnly: cfg.Config.HTTP.TrustHeadersOnly,
		Logger:           logger,
	})
}

// RunHTTPServer serves until ctx is canceled, then drains connections within
// the configured shutdown timeout.
func RunHTTPServer(ctx context.Context, cfg *HTTPServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := cfg.Config.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      BuildHandler(cfg),
		ReadTimeout:  cfg.Config.HTTP.ReadTimeout,
		WriteTimeout: cfg.Config.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Config.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}

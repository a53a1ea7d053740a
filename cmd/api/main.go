package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	httpAdapter "github.com/lorrc/ticket-tally/internal/adapters/primary/http"
	mw "github.com/lorrc/ticket-tally/internal/adapters/primary/http/middleware"
	"github.com/lorrc/ticket-tally/internal/adapters/primary/websocket"
	"github.com/lorrc/ticket-tally/internal/adapters/secondary/store"
	"github.com/lorrc/ticket-tally/internal/auth"
	"github.com/lorrc/ticket-tally/internal/config"
	"github.com/lorrc/ticket-tally/internal/core/services"
	"github.com/lorrc/ticket-tally/internal/infrastructure/logging"
	"github.com/lorrc/ticket-tally/internal/infrastructure/metrics"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"store_backend", cfg.Store.Backend,
		"timezone", cfg.App.Timezone,
	)

	// 3. Open the Tabular Store
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.New()

	// Clients built here may keep ctx for credential refresh, so it is not given a deadline.
	tallyStore, err := store.Open(ctx, cfg, appMetrics, logger)
	if err != nil {
		logger.Error("failed to open tabular store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := tallyStore.Close(); err != nil {
			logger.Error("failed to close tabular store", "error", err)
		}
	}()

	// 4. Initialize Real-time Components and Core Service
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	tallyService := services.NewTallyService(tallyStore, hub, appMetrics, logger, services.TallyServiceConfig{
		Location: cfg.Location(),
	})

	initCtx, cancelInit := context.WithTimeout(ctx, cfg.Store.Timeout)
	err = tallyService.Init(initCtx)
	cancelInit()
	if err != nil {
		logger.Error("failed to initialize store header", "error", err)
		os.Exit(1)
	}
	logger.Info("tabular store ready", "backend", cfg.Store.Backend)

	// 5. Initialize Security Components
	var (
		tokenManager  *auth.TokenManager
		authenticator *auth.Authenticator
		pageAuth      *httpAdapter.PageAuth
	)
	if cfg.Auth.Enabled {
		tokenManager = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		authenticator = auth.NewAuthenticator(cfg.Auth.PasswordHash, tokenManager)
		pageAuth = &httpAdapter.PageAuth{
			Authenticator: authenticator,
			TokenManager:  tokenManager,
			SecureCookies: cfg.IsProduction(),
		}
	} else {
		logger.Warn("write protection disabled, anyone can submit counts")
	}

	// 6. Initialize Rate Limiters
	var generalRateLimiter, authRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.GeneralRateLimiterConfig(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize))
		defer generalRateLimiter.Stop()

		authRateLimiter = mw.NewRateLimiter(mw.AuthRateLimiterConfig(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst))
		defer authRateLimiter.Stop()
	}

	// 7. Dependency Injection (Primary Adapters)
	errorHandler := httpAdapter.NewErrorHandler(logger)
	tallyHandler := httpAdapter.NewTallyHandler(tallyService, errorHandler, logger)
	pageHandler := httpAdapter.NewPageHandler(tallyService, pageAuth, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(tallyStore, cfg.Store.Backend, cfg.App.Version)

	var writeGuards []func(http.Handler) http.Handler
	if tokenManager != nil {
		writeGuards = append(writeGuards, mw.JWTMiddleware(tokenManager))
	}

	// 8. Setup Router
	r := chi.NewRouter()

	// Global middleware
	if cfg.RateLimit.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))

	// Cross-origin dashboards only when explicitly listed
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Probes and metrics sit outside the rate limiter
	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", appMetrics.Handler())

	r.Group(func(r chi.Router) {
		if generalRateLimiter != nil {
			r.Use(generalRateLimiter.Middleware)
		}

		// HTML page
		r.Group(func(r chi.Router) {
			if tokenManager != nil {
				r.Use(mw.OptionalJWT(tokenManager))
			}
			pageHandler.RegisterRoutes(r)
		})

		// API routes
		r.Route("/api/v1", func(r chi.Router) {
			if authenticator != nil {
				authHandler := httpAdapter.NewAuthHandler(authenticator, tokenManager, errorHandler, logger)
				r.Group(func(r chi.Router) {
					if authRateLimiter != nil {
						r.Use(authRateLimiter.Middleware)
					}
					r.Route("/auth", authHandler.RegisterRoutes)
				})
			}

			// WebSocket route (Authentication is handled inside the handler)
			r.Get("/ws", wsHandler.ServeHTTP)

			r.Route("/tally", func(r chi.Router) {
				tallyHandler.RegisterRoutes(r, writeGuards...)
			})
		})
	})

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server shutdown complete")
}

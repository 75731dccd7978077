package main

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/device"
	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/health"
	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/status"
	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

type server struct {
	router  *chi.Mux
	auth    *deviceflow.Authenticator
	tracker *device.Tracker
	signal  *authSignal
	log     *zap.Logger
}

func newServer(auth *deviceflow.Authenticator, tracker *device.Tracker, signal *authSignal, gatherer prometheus.Gatherer, log *zap.Logger) *server {
	srv := &server{
		router:  chi.NewRouter(),
		auth:    auth,
		tracker: tracker,
		signal:  signal,
		log:     log,
	}

	// Set up middleware
	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(requestLogger(log))
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(30 * time.Second))

	srv.routes(gatherer)
	return srv
}

func (s *server) routes(gatherer prometheus.Gatherer) {
	s.router.Method(http.MethodGet, "/health",
		health.New(map[string]health.Checker{"token_store": s.auth}).WithVersion(Version))
	s.router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodGet, "/status", status.New(s.signal, s.tracker))

		attempts := device.New(s.tracker)
		r.Post("/device", attempts.Start)
		r.Delete("/device", attempts.Cancel)
	})
}

// requestLogger logs every request with zap
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// authSignal caches the authentication state published by the token store
type authSignal struct {
	authenticated atomic.Bool
}

// watch subscribes to auth and keeps the signal current until ctx is done.
// The first state is applied before watch returns.
func (s *authSignal) watch(ctx context.Context, auth *deviceflow.Authenticator) error {
	states, err := auth.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching token store: %w", err)
	}

	select {
	case st, ok := <-states:
		if ok {
			s.authenticated.Store(st.Authenticated)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	go func() {
		for st := range states {
			s.authenticated.Store(st.Authenticated)
		}
	}()
	return nil
}

// Authenticated implements status.Signal
func (s *authSignal) Authenticated() bool {
	return s.authenticated.Load()
}

// serve runs the status server until ctx is done
func serve(ctx context.Context, cfg Config, auth *deviceflow.Authenticator, gatherer prometheus.Gatherer, log *zap.Logger) error {
	signal := &authSignal{}
	if err := signal.watch(ctx, auth); err != nil {
		return err
	}

	tracker := device.NewTracker(ctx, auth)
	srv := newServer(auth, tracker, signal, gatherer, log)

	// Create HTTP server with proper timeout configurations
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("Server listening", zap.Int("port", cfg.Port))
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Block until we receive a signal or error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("starting server: %w", err)

	case <-ctx.Done():
		log.Info("Starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down server", zap.Error(err))
			if err := httpServer.Close(); err != nil {
				log.Error("Error closing server", zap.Error(err))
			}
		}

		// The attempt in flight was cancelled with ctx
		if err := tracker.Wait(shutdownCtx); err != nil {
			log.Warn("Attempt still running at shutdown", zap.Error(err))
		}
	}
	return nil
}

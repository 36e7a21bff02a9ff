package cli

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 30
	serverMaxHeaderBytes      = 20

	addressFlag = "address"
)

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server"},
		Usage:   "Start the HTTP scoring API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  addressFlag,
				Usage: "Address on which the server will listen (default: server.address from config)",
			},
		},
		Action: cmdStartServer,
	}
}

func cmdStartServer(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	address := cfg.Config.Server.Address
	if v := cmd.String(addressFlag); v != "" {
		address = v
	}

	token, err := getAPIToken(cfg.HomeDir)
	if err != nil {
		return fmt.Errorf("reading API token: %w", err)
	}
	if token == "" {
		slog.Warn("no API token set, API is unauthenticated (run: loanscore auth)")
	}

	s := &http.Server{
		Addr:              address,
		Handler:           makeRouter(cfg, token),
		ReadHeaderTimeout: serverTimeoutSeconds * time.Second,
		ReadTimeout:       serverTimeoutSeconds * time.Second,
		WriteTimeout:      serverTimeoutSeconds * time.Second,
		MaxHeaderBytes:    1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", fmt.Sprintf("http://%s", address), "model", cfg.Artifact.ModelVersion())

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(cfg *appConfig, token string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(serverTimeoutSeconds * time.Second))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthAPIHandler(cfg))
		r.Get("/schema", schemaAPIHandler(cfg))
		r.Get("/explain", explainAPIHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(token))
			r.Post("/predict", predictAPIHandler(cfg))

			if cfg.Store != nil {
				r.Get("/assessments", listAssessmentsAPIHandler(cfg.Store))
				r.Get("/assessments/stats", statsAPIHandler(cfg.Store))
				r.Get("/assessments/{id}", getAssessmentAPIHandler(cfg.Store))
			}
		})
	})

	return r
}

// bearerAuth requires the token on every request. An empty token disables
// the check.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="loanscore"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.Debug("request",
				"id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}

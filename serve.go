package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/csflash/flashsync/internal/catalog"
	"github.com/csflash/flashsync/internal/graph"
	"github.com/csflash/flashsync/internal/sync"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	var flagAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the sync API: trigger cycles, read folder status and catalog
reports, and complete the browser login flow. Sync requests run synchronously,
one at a time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			a, err := newApp(logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := a.cfg.Serve.Addr
			if flagAddr != "" {
				addr = flagAddr
			}

			s := &server{app: a, logger: logger}

			return s.listen(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")

	return cmd
}

type server struct {
	app    *app
	logger *slog.Logger

	// syncGate serializes sync requests; overlapping cycles would race on
	// cursors and the temp directory.
	syncGate chan struct{}
}

func (s *server) listen(ctx context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.logger.Info("listening", slog.String("addr", addr))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *server) routes() http.Handler {
	if s.syncGate == nil {
		s.syncGate = make(chan struct{}, 1)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/sync", s.handleSync)
		r.Get("/report", s.handleReport)
		r.Get("/probe", s.handleProbe)
	})

	r.Get("/auth/login", s.handleAuthLogin)
	r.Get("/auth/callback", s.handleAuthCallback)

	return r
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := sync.Statuses(r.Context(), s.app.store, s.app.cfg.Sync.Folders)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statuses)
}

// folderResultJSON is the wire form of a folder cycle result.
type folderResultJSON struct {
	Folder     string `json:"folder"`
	State      string `json:"state"`
	Planned    int    `json:"planned"`
	Fetched    int    `json:"fetched"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	select {
	case s.syncGate <- struct{}{}:
		defer func() { <-s.syncGate }()
	default:
		s.writeError(w, http.StatusConflict, errors.New("a sync cycle is already running"))
		return
	}

	opts := sync.RunOptions{
		Force:  r.URL.Query().Get("full") == "1",
		Folder: r.URL.Query().Get("folder"),
	}

	result, err := s.app.orch.Run(r.Context(), opts)
	if err != nil {
		status := http.StatusBadGateway

		var authErr *graph.AuthError
		if errors.As(err, &authErr) || errors.Is(err, graph.ErrNotAuthenticated) {
			status = http.StatusUnauthorized
		} else if result != nil && len(result.Folders) == 0 {
			// Nothing ran: a request problem like an unknown folder key.
			status = http.StatusBadRequest
		}

		s.writeError(w, status, err)

		return
	}

	out := make([]folderResultJSON, 0, len(result.Folders))
	for _, fr := range result.Folders {
		row := folderResultJSON{
			Folder:     fr.Folder,
			State:      fr.State.String(),
			Planned:    fr.Planned,
			Fetched:    fr.Fetched,
			Created:    fr.Created,
			Updated:    fr.Updated,
			Skipped:    fr.Skipped,
			DurationMS: fr.Duration.Milliseconds(),
		}

		if fr.Err != nil {
			row.Error = fr.Err.Error()
		}

		out = append(out, row)
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	rows, err := catalog.Report(s.app.db)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, rows)
}

func (s *server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if err := s.app.client.Probe(r.Context()); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"error":         err.Error(),
		})

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"authenticated": true})
}

func (s *server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.app.tokens.AuthURL("serve"), http.StatusFound)
}

func (s *server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing code parameter"))
		return
	}

	if err := s.app.tokens.ExchangeCode(r.Context(), code); err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"logged_in": true})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", slog.String("error", err.Error()))
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-harvester/internal/model"
	"github.com/sells-group/listing-harvester/internal/report"
	"github.com/sells-group/listing-harvester/internal/store"
)

var servePort int

// runExecutor abstracts the coordinator for the run manager; tests stub it.
type runExecutor interface {
	Execute(ctx context.Context, run *model.Run) (*model.RunSummary, error)
}

// runManager starts runs asynchronously and tracks their cancel functions
// so the API can stop an in-flight run.
type runManager struct {
	store    store.Store
	executor runExecutor

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newRunManager(st store.Store, executor runExecutor) *runManager {
	return &runManager{
		store:    st,
		executor: executor,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// start creates the run record, launches the scrape in the background, and
// returns the run so the caller knows its ID immediately.
func (m *runManager) start(ctx context.Context, req model.ScrapeRequest) (*model.Run, error) {
	run, err := m.store.CreateRun(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "start run")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancels[run.ID] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.cancels, run.ID)
			m.mu.Unlock()
		}()

		if _, err := m.executor.Execute(runCtx, run); err != nil {
			zap.L().Error("run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()

	return run, nil
}

// cancel stops an in-flight run. Returns false when the run is not active.
func (m *runManager) cancel(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

// active reports whether a run is currently executing.
func (m *runManager) active(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cancels[runID]
	return ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// newServeRouter wires the HTTP API over the store and run manager.
func newServeRouter(st store.Store, mgr *runManager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body model.ScrapeRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.SearchTerm == "" || body.Location == "" {
				writeError(w, http.StatusBadRequest, "search_term and location are required")
				return
			}
			if body.Parallelism == 0 {
				body.Parallelism = cfg.Run.Parallelism
			}

			run, err := mgr.start(req.Context(), body)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, run)
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			runs, err := st.ListRuns(req.Context(), 100)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if runs == nil {
				runs = []model.Run{}
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/{runID}", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "runID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if run == nil {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/{runID}/checkpoints", func(w http.ResponseWriter, req *http.Request) {
			cps, err := st.ListCheckpoints(req.Context(), chi.URLParam(req, "runID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if cps == nil {
				cps = []model.Checkpoint{}
			}
			writeJSON(w, http.StatusOK, cps)
		})

		r.Post("/{runID}/cancel", func(w http.ResponseWriter, req *http.Request) {
			runID := chi.URLParam(req, "runID")
			if !mgr.cancel(runID) {
				writeError(w, http.StatusConflict, "run is not active")
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "run_id": runID})
		})

		r.Get("/{runID}/report", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "runID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if run == nil {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			if run.Summary == nil || run.Summary.OutputPath == "" {
				writeError(w, http.StatusConflict, "run has no output table yet")
				return
			}

			f, err := os.Open(run.Summary.OutputPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "output table unreadable")
				return
			}
			defer f.Close() //nolint:errcheck

			summary, err := report.FromCSV(f)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, summary)
		})
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for launching and inspecting runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := os.MkdirAll(cfg.Run.OutputDir, 0o755); err != nil {
			return eris.Wrap(err, "create output dir")
		}

		env, err := initHarvest(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mgr := newRunManager(env.Store, env.Coordinator)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newServeRouter(env.Store, mgr),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

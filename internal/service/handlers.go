// Package service exposes schema analysis over HTTP: runs are submitted to
// an in-process worker pool, tracked in the ledger, and observable through a
// websocket event stream.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/schemalens/schemalens/internal/cache"
	"github.com/schemalens/schemalens/internal/ledger"
	"github.com/schemalens/schemalens/internal/store"
)

// API wires the HTTP handlers to the ledger, worker pool, event hub, cache
// and document store.
type API struct {
	ledger   *ledger.Ledger
	pool     *WorkerPool
	hub      *Hub
	cache    cache.Cache
	docs     store.Store
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewAPI builds the handler set. Cache and document store are optional;
// document reads fall back to the artifact file on disk.
func NewAPI(l *ledger.Ledger, pool *WorkerPool, hub *Hub, c cache.Cache, docs store.Store, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		ledger: l,
		pool:   pool,
		hub:    hub,
		cache:  c,
		docs:   docs,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the service router.
func (a *API) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Route("/api/analyses", func(r chi.Router) {
		r.Post("/", a.handleCreate)
		r.Get("/", a.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleGet)
			r.Delete("/", a.handleCancel)
			r.Get("/document", a.handleDocument)
			r.Get("/events", a.handleEvents)
		})
	})
	return r
}

// runResponse is the API view of a ledger run.
type runResponse struct {
	ID              string        `json:"id"`
	Repository      string        `json:"repository"`
	SourcePath      string        `json:"source_path"`
	Status          ledger.Status `json:"status"`
	DocumentPath    string        `json:"document_path,omitempty"`
	StagingPath     string        `json:"staging_path,omitempty"`
	EntityCount     int           `json:"entity_count"`
	DiagnosticCount int           `json:"diagnostic_count"`
	Error           string        `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
}

func runView(run *ledger.Run) *runResponse {
	return &runResponse{
		ID:              run.ID,
		Repository:      run.Repository,
		SourcePath:      run.SourcePath,
		Status:          run.Status,
		DocumentPath:    run.DocumentPath,
		StagingPath:     run.StagingPath,
		EntityCount:     run.EntityCount,
		DiagnosticCount: run.DiagnosticCount,
		Error:           run.Error,
		CreatedAt:       run.CreatedAt,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createRequest is the body of POST /api/analyses.
type createRequest struct {
	SourcePath string `json:"source_path"`
	Repository string `json:"repository"`
	Stage      bool   `json:"stage"`
}

// handleCreate records a pending run, queues it and answers 202 with the run
// before any work happens.
func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.SourcePath == "" {
		writeError(w, http.StatusBadRequest, "source_path is required")
		return
	}
	info, err := os.Stat(req.SourcePath)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("source path %s: %v", req.SourcePath, err))
		return
	}
	if !info.IsDir() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("source path %s is not a directory", req.SourcePath))
		return
	}
	repository := req.Repository
	if repository == "" {
		repository = filepath.Base(req.SourcePath)
	}

	run, err := a.ledger.Create(r.Context(), repository, req.SourcePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.hub.Publish(statusEvent(run.ID, ledger.StatusPending))

	task := Task{
		RunID:      run.ID,
		SourcePath: req.SourcePath,
		Repository: repository,
		Stage:      req.Stage,
	}
	if err := a.pool.Enqueue(task); err != nil {
		if ferr := a.ledger.Fail(r.Context(), run.ID, err.Error()); ferr != nil {
			a.logger.Warn("failed to record rejected run",
				zap.String("run_id", run.ID), zap.Error(ferr))
		}
		a.hub.Publish(statusEvent(run.ID, ledger.StatusFailed))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	a.logger.Info("run accepted",
		zap.String("run_id", run.ID),
		zap.String("repository", repository))
	writeJSON(w, http.StatusAccepted, runView(run))
}

// handleList returns run history, optionally filtered by ?status= and capped
// by ?limit=.
func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	var f ledger.Filter
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := ledger.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = status
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", s))
			return
		}
		f.Limit = n
	}

	runs, err := a.ledger.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]*runResponse, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView(run))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	run, ok := a.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, runView(run))
}

// handleCancel records the cancellation first so a queued run can never start
// afterwards, then interrupts the worker if one is already executing it. An
// executing run observes its context and reports the transition itself; a
// queued run never will, so it is reported here.
func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := a.ledger.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, ledger.ErrRunNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	case errors.Is(err, ledger.ErrRunFinished):
		writeError(w, http.StatusConflict, fmt.Sprintf("run %s is already finished", id))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !a.pool.Cancel(id) {
		a.hub.Publish(statusEvent(id, ledger.StatusCancelled))
	}

	a.logger.Info("run cancelled", zap.String("run_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// handleDocument serves the run's schema document: cache first, then the
// document store, then the artifact file, backfilling the cache on a miss.
func (a *API) handleDocument(w http.ResponseWriter, r *http.Request) {
	run, ok := a.lookupRun(w, r)
	if !ok {
		return
	}
	if run.DocumentPath == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s has no document", run.ID))
		return
	}

	key := cache.DocumentKey(run.ID)
	if a.cache != nil {
		data, err := a.cache.Get(r.Context(), key)
		if err == nil {
			a.writeDocument(w, data)
			return
		}
		if !cache.IsCacheMiss(err) {
			a.logger.Warn("document cache read failed",
				zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	data, err := a.loadDocument(r.Context(), run)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("document for run %s is gone", run.ID))
		return
	}
	if a.cache != nil {
		if err := a.cache.Set(r.Context(), key, data, 0); err != nil {
			a.logger.Warn("document cache write failed",
				zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	a.writeDocument(w, data)
}

func (a *API) loadDocument(ctx context.Context, run *ledger.Run) ([]byte, error) {
	if a.docs != nil {
		data, err := a.docs.Get(ctx, run.ID, filepath.Base(run.DocumentPath))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("document store read failed",
				zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return os.ReadFile(run.DocumentPath)
}

func (a *API) writeDocument(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// lookupRun resolves the {id} path parameter, writing the error response
// itself when the run does not exist.
func (a *API) lookupRun(w http.ResponseWriter, r *http.Request) (*ledger.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := a.ledger.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return run, true
}

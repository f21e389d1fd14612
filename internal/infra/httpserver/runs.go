package httpserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appanalysis "github.com/bryanwahyu/pyq-analyzer/internal/application/analysis"
	lib "github.com/bryanwahyu/pyq-analyzer/internal/domain/library"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

// runRegistry tracks streaming runs so other requests can pause them.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*trackedRun
}

type trackedRun struct {
	tenant  string
	started time.Time
	run     *appanalysis.Run
}

type runStatus struct {
	ID       string             `json:"id"`
	Started  time.Time          `json:"started"`
	Paused   bool               `json:"paused"`
	Progress questions.Progress `json:"progress"`
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*trackedRun)}
}

func (rr *runRegistry) add(tenant string, run *appanalysis.Run) string {
	id := uuid.NewString()
	rr.mu.Lock()
	rr.runs[id] = &trackedRun{tenant: tenant, started: now(), run: run}
	rr.mu.Unlock()
	return id
}

func (rr *runRegistry) remove(id string) {
	rr.mu.Lock()
	delete(rr.runs, id)
	rr.mu.Unlock()
}

func (rr *runRegistry) get(tenant, id string) (*trackedRun, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	t, ok := rr.runs[id]
	if !ok || t.tenant != tenant {
		return nil, fmt.Errorf("run %s: %w", id, lib.ErrNotFound)
	}
	return t, nil
}

func statusOf(id string, t *trackedRun) runStatus {
	return runStatus{ID: id, Started: t.started, Paused: t.run.Paused(), Progress: t.run.Last()}
}

// GET /v1/{tenant}/runs/{runID}
func (r *Router) handleRunStatus(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "runID")
	t, err := r.runs.get(tenantOf(req), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, statusOf(id, t))
}

// POST /v1/{tenant}/runs/{runID}/pause
func (r *Router) handleRunPause(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "runID")
	t, err := r.runs.get(tenantOf(req), id)
	if err != nil {
		return err
	}
	t.run.Pause()
	return writeJSON(w, http.StatusOK, statusOf(id, t))
}

// POST /v1/{tenant}/runs/{runID}/resume
func (r *Router) handleRunResume(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "runID")
	t, err := r.runs.get(tenantOf(req), id)
	if err != nil {
		return err
	}
	t.run.Resume()
	return writeJSON(w, http.StatusOK, statusOf(id, t))
}

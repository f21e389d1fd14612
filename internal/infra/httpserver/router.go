package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/pyq-analyzer/internal/application/analysis"
	applib "github.com/bryanwahyu/pyq-analyzer/internal/application/library"
	domai "github.com/bryanwahyu/pyq-analyzer/internal/domain/ai"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/kv"
	lib "github.com/bryanwahyu/pyq-analyzer/internal/domain/library"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/proxy"
	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
	"github.com/bryanwahyu/pyq-analyzer/internal/middleware"
)

const ServiceName = "pyq-analyzer"

// Deps is everything the HTTP layer needs. Nil RateLimiter disables rate
// limiting; empty APIKeys disables auth.
type Deps struct {
	Analysis *appanalysis.Service
	Library  *applib.Service
	Proxy    *proxy.Fetcher

	// Health lists what /health pings; Ready gates /ready. Started is the
	// uptime origin and defaults to router construction.
	Health         []middleware.Dependency
	Ready          func() bool
	Started        time.Time
	APIKeys        map[string]string
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	MaxUploadBytes int64

	Log *zap.Logger
}

type Router struct {
	analysis  *appanalysis.Service
	library   *applib.Service
	proxy     *proxy.Fetcher
	runs      *runRegistry
	maxUpload int64
	log       *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	r := &Router{
		analysis:  d.Analysis,
		library:   d.Library,
		proxy:     d.Proxy,
		runs:      newRunRegistry(),
		maxUpload: d.MaxUploadBytes,
		log:       logging.OrNop(d.Log).Named("http"),
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 25 << 20
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	mux.Use(middleware.Logging(r.log), middleware.Metrics)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Run-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	mux.Use(middleware.APIKeyAuth(d.APIKeys))
	if d.RateLimiter != nil {
		mux.Use(middleware.RateLimit(d.RateLimiter))
	}

	started := d.Started
	if started.IsZero() {
		started = time.Now()
	}
	mux.Get("/health", middleware.HealthHandler(ServiceName, started, d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	mux.Handle("/metrics", middleware.MetricsHandler())
	mux.Get("/api/proxy", r.wrap(r.handleProxy))

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)

		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/analyze/stream", r.wrap(r.handleAnalyzeStream))
		rt.Get("/runs/{runID}", r.wrap(r.handleRunStatus))
		rt.Post("/runs/{runID}/pause", r.wrap(r.handleRunPause))
		rt.Post("/runs/{runID}/resume", r.wrap(r.handleRunResume))

		rt.Get("/questions", r.wrap(r.handleQuestions))
		rt.Delete("/questions", r.wrap(r.handleClear))
		rt.Get("/topics", r.wrap(r.handleTopics))
		rt.Get("/recent", r.wrap(r.handleRecent))
		rt.Get("/recent/{id}", r.wrap(r.handleLoadRecent))

		rt.Get("/notes", r.wrap(r.handleNotes))
		rt.Post("/notes", r.wrap(r.handleSaveNote))
		rt.Delete("/notes/{id}", r.wrap(r.handleDeleteNote))

		rt.Get("/chats", r.wrap(r.handleChats))
		rt.Post("/chats", r.wrap(r.handleCreateChat))
		rt.Post("/chats/{id}/messages", r.wrap(r.handleAppendMessage))

		rt.Get("/users", r.wrap(r.handleUsers))
		rt.Post("/users", r.wrap(r.handleRegister))
		rt.Get("/session", r.wrap(r.handleCurrentUser))
		rt.Put("/session", r.wrap(r.handleLogin))
		rt.Delete("/session", r.wrap(r.handleLogout))
		rt.Get("/users/{userID}/sessions", r.wrap(r.handleSessions))
		rt.Post("/users/{userID}/sessions", r.wrap(r.handleSaveSession))

		rt.Put("/settings/api-keys/{provider}", r.wrap(r.handleSetAPIKey))
		rt.Get("/settings/flags/{name}", r.wrap(r.handleFlag))
		rt.Put("/settings/flags/{name}", r.wrap(r.handleSetFlag))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
				r.log.Error("request failed",
					zap.String("path", req.URL.Path),
					zap.String("request_id", chimw.GetReqID(req.Context())),
					zap.Error(err))
			}
			http.Error(w, err.Error(), status)
		}
	}
}

func statusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, lib.ErrNotFound), errors.Is(err, kv.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, lib.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, lib.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, lib.ErrInvalid),
		errors.Is(err, proxy.ErrInvalidURL),
		errors.Is(err, questions.ErrUnsupported),
		errors.Is(err, questions.ErrUnreadable),
		errors.Is(err, domai.ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, questions.ErrNoQuestions), errors.Is(err, questions.ErrNoText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, proxy.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, proxy.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return invalid("malformed JSON body: %v", err)
	}
	return nil
}

func tenantOf(req *http.Request) string {
	return chi.URLParam(req, "tenant")
}

// time source for handlers that stamp responses
var now = time.Now

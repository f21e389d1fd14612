package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	StateOK       = "ok"
	StateDegraded = "degraded"
	StateDown     = "down"

	pingTimeout = 2 * time.Second
)

// Pinger is anything with a Ping: kv stores, the upload archive.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a backing service listed on /health. A failing optional
// dependency (the upload archive) degrades the report; a failing required
// one (the result store) takes the service down.
type Dependency struct {
	Name     string
	Target   Pinger
	Optional bool
}

type DependencyState struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Optional  bool   `json:"optional,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type HealthReport struct {
	Service      string            `json:"service"`
	State        string            `json:"state"`
	Uptime       string            `json:"uptime"`
	CheckedAt    time.Time         `json:"checked_at"`
	Dependencies []DependencyState `json:"dependencies"`
}

// Report pings every dependency in parallel.
func Report(ctx context.Context, service string, started time.Time, deps []Dependency) HealthReport {
	states := make([]DependencyState, len(deps))
	var wg sync.WaitGroup
	for i, d := range deps {
		wg.Add(1)
		go func(i int, d Dependency) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			begin := time.Now()
			err := d.Target.Ping(pctx)
			states[i] = DependencyState{Name: d.Name, OK: err == nil, Optional: d.Optional, LatencyMS: time.Since(begin).Milliseconds()}
			if err != nil {
				states[i].Error = err.Error()
			}
		}(i, d)
	}
	wg.Wait()
	sort.Slice(states, func(a, b int) bool { return states[a].Name < states[b].Name })

	rep := HealthReport{
		Service:      service,
		State:        StateOK,
		Uptime:       time.Since(started).Round(time.Second).String(),
		CheckedAt:    time.Now().UTC(),
		Dependencies: states,
	}
	for _, s := range states {
		switch {
		case s.OK:
		case s.Optional:
			if rep.State == StateOK {
				rep.State = StateDegraded
			}
		default:
			rep.State = StateDown
		}
	}
	return rep
}

// HealthHandler answers 503 only when a required dependency is down.
func HealthHandler(service string, started time.Time, deps []Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := Report(r.Context(), service, started, deps)
		code := http.StatusOK
		if rep.State == StateDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	}
}

// ReadinessHandler reports whether the server takes new analysis runs;
// ready returns false once shutdown has begun. Nil means always ready.
func ReadinessHandler(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok := ready == nil || ready()
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"ready": ok})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package analysis

import (
	"context"
	"sync"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

// Run is one in-flight analysis. Events are buffered for the whole run so
// the driver never blocks on a slow or absent reader.
type Run struct {
	events chan domain.Progress
	done   chan struct{}

	result *domain.AnalysisResult
	err    error

	mu     sync.Mutex
	paused bool
	resume chan struct{}
	last   domain.Progress
}

func newRun(totalFiles int) *Run {
	// per file: uploading..enriching plus skipped/error, plus the final event
	capacity := totalFiles*7 + 2
	return &Run{
		events: make(chan domain.Progress, capacity),
		done:   make(chan struct{}),
	}
}

// Events streams progress; the channel is closed when the run ends.
func (r *Run) Events() <-chan domain.Progress { return r.events }

// Done is closed once the result or error is available.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends.
func (r *Run) Wait() (*domain.AnalysisResult, error) {
	<-r.done
	return r.result, r.err
}

// Last returns the most recent progress event.
func (r *Run) Last() domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Pause stops the driver before its next step. A step already running is
// not interrupted.
func (r *Run) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		r.paused = true
		r.resume = make(chan struct{})
	}
}

// Resume releases a paused run.
func (r *Run) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		r.paused = false
		close(r.resume)
	}
}

func (r *Run) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// gate waits while paused and reports cancellation.
func (r *Run) gate(ctx context.Context) error {
	r.mu.Lock()
	if !r.paused {
		r.mu.Unlock()
		return ctx.Err()
	}
	ch := r.resume
	r.mu.Unlock()

	select {
	case <-ch:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) emit(p domain.Progress) {
	r.mu.Lock()
	r.last = p
	r.mu.Unlock()
	select {
	case r.events <- p:
	default:
		// full buffer: drop instead of blocking the driver
	}
}

func (r *Run) finish(res *domain.AnalysisResult, err error) {
	r.result, r.err = res, err
	close(r.events)
	close(r.done)
}

package recognize

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"molina/internal/exchange"
	"molina/internal/imaging"
)

var (
	// ErrBusy is returned while a prediction is in flight.
	ErrBusy = errors.New("prediction in progress")

	// ErrClosed is returned after the runner has been closed.
	ErrClosed = errors.New("runner closed")
)

// Result is the outcome of one prediction.
type Result struct {
	Path    string // Image the prediction was started for
	Model   string
	Doc     exchange.Document
	Err     error
	Elapsed time.Duration
}

// Runner executes at most one prediction at a time off the caller's
// goroutine.
type Runner struct {
	mu     sync.Mutex
	group  *errgroup.Group
	ctx    context.Context
	stop   context.CancelFunc
	cancel context.CancelFunc // Cancels the in-flight prediction
	busy   bool
	closed bool
}

// NewRunner creates an idle runner.
func NewRunner() *Runner {
	g := &errgroup.Group{}
	g.SetLimit(1)
	ctx, stop := context.WithCancel(context.Background())
	return &Runner{group: g, ctx: ctx, stop: stop}
}

// Busy reports whether a prediction is in flight.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Start launches rec on pic. done is called exactly once from the worker
// goroutine, after Busy has returned to false.
func (r *Runner) Start(rec Recognizer, pic *imaging.Picture, done func(Result)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.busy {
		return ErrBusy
	}

	ctx, cancel := context.WithCancel(r.ctx)
	started := r.group.TryGo(func() error {
		begin := time.Now()
		doc, err := Predict(ctx, rec, pic)
		cancel()

		res := Result{Path: pic.Path, Model: rec.Name(), Doc: doc, Err: err, Elapsed: time.Since(begin)}
		if err != nil {
			log.Printf("Prediction with %s failed after %v: %v", res.Model, res.Elapsed, err)
		} else {
			log.Printf("Prediction with %s: %d atoms, %d bonds in %v",
				res.Model, len(doc.Atoms), len(doc.Bonds), res.Elapsed)
		}

		r.mu.Lock()
		r.busy = false
		r.cancel = nil
		r.mu.Unlock()

		done(res)
		return nil
	})
	if !started {
		cancel()
		return ErrBusy
	}
	r.busy = true
	r.cancel = cancel
	return nil
}

// Cancel aborts the in-flight prediction, if any. Its done callback still
// runs, with a context error.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Close cancels any prediction and waits for the worker to exit. Further
// Start calls fail with ErrClosed.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stop()
	_ = r.group.Wait()
}

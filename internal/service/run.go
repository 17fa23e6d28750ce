package service

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dfs-summarizer/summarizer/internal/log"
	"github.com/dfs-summarizer/summarizer/internal/model"
)

// Runner starts runs of a worker. It holds no per-run state, so a single
// Runner serves any number of concurrent runs.
type Runner struct {
	worker  Worker
	secrets SecretSource
	names   []string
	static  map[string]string
	environ func() []string
}

func NewRunner(worker Worker, secrets SecretSource, cfg model.Worker) *Runner {
	return &Runner{
		worker:  worker,
		secrets: secrets,
		names:   append([]string(nil), cfg.Secrets...),
		static:  cfg.Env,
		environ: os.Environ,
	}
}

// WithEnviron replaces the source of the inherited environment.
// This method exists for a unit testing only.
func (r *Runner) WithEnviron(environ func() []string) *Runner {
	r.environ = environ
	return r
}

// Start spawns a new worker. The returned error wraps model.ErrLaunch when
// the worker could not be started, in which case there is no Run at all.
// The worker is tied to ctx: cancelling it kills the worker (unless the
// command is detached).
func (r *Runner) Start(ctx context.Context) (*Run, error) {
	id := NewRunID()
	ctx = log.ContextAttrs(ctx, slog.String("run_id", id))

	env := NewEnv(r.environ(), r.static, r.secrets, r.names)
	slog.DebugContext(ctx, "worker environment", "vars", env.Len(), "secrets", len(r.names))
	for _, name := range r.names {
		if v, _ := env.Lookup(name); v == "" {
			slog.WarnContext(ctx, "secret is not configured, forwarding empty value", "name", name)
		}
	}

	handle, err := r.worker.Spawn(ctx, env)
	if err != nil {
		slog.ErrorContext(ctx, "worker launch failed", "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "worker started")
	return &Run{
		ID:      id,
		Started: time.Now().UTC(),
		ctx:     ctx,
		handle:  handle,
		done:    make(chan struct{}),
	}, nil
}

// Run is a single started worker. Its events can be consumed only once.
type Run struct {
	ID      string
	Started time.Time

	ctx    context.Context
	handle Handle
	once   sync.Once
	done   chan struct{}
}

// Events yields the start event, one line event per output line and the
// end event. Events are produced while the worker runs, each as soon as it
// is available. Only the first call yields anything.
//
// When the consumer stops early, the rest of the output is drained and the
// worker is reaped in the background.
func (r *Run) Events() iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		r.once.Do(func() {
			r.relay(yield)
		})
	}
}

// Discard releases a run whose events are not going to be consumed.
func (r *Run) Discard() {
	r.once.Do(r.discard)
}

// Done is closed once the worker has terminated and was reaped.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) relay(yield func(model.Event) bool) {
	var seq int
	emit := func(ev model.Event) bool {
		ev.RunID = r.ID
		ev.Seq = seq
		ev.Time = time.Now().UTC()
		seq++
		return yield(ev)
	}

	if !emit(model.Event{Type: model.EventStart}) {
		r.discard()
		return
	}

	var streamErr error
	for line, err := range Lines(r.handle.Output()) {
		if err != nil {
			streamErr = err
			slog.WarnContext(r.ctx, "worker output ended abnormally", "error", err)
			// a worker blocked on a full pipe never exits
			go func() {
				_, _ = io.Copy(io.Discard, r.handle.Output())
			}()
			break
		}
		if !emit(model.Event{Type: model.EventLine, Text: line}) {
			slog.DebugContext(r.ctx, "consumer stopped, discarding the rest of the output")
			r.discard()
			return
		}
	}

	emit(r.complete(streamErr))
}

func (r *Run) discard() {
	go func() {
		for _, err := range Lines(r.handle.Output()) {
			if err != nil {
				break
			}
		}
		_, _ = r.wait()
	}()
}

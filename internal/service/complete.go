package service

import (
	"log/slog"
	"time"

	"github.com/dfs-summarizer/summarizer/internal/model"
)

// complete waits for the worker and builds the end event. It must be called
// only after the output has been drained.
func (r *Run) complete(streamErr error) model.Event {
	code, err := r.wait()

	ev := model.Event{Type: model.EventEnd}
	if streamErr != nil {
		ev.StreamError = streamErr.Error()
	}
	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.ExitCode = &code
	}
	return ev
}

func (r *Run) wait() (int, error) {
	defer close(r.done)
	code, err := r.handle.Wait()
	attrs := []any{
		slog.Duration("elapsed", time.Since(r.Started)),
	}
	switch {
	case err != nil:
		slog.ErrorContext(r.ctx, "worker terminated without exit code", append(attrs, "error", err)...)
	case code != 0:
		slog.WarnContext(r.ctx, "worker failed", append(attrs, "exit_code", code)...)
	default:
		slog.InfoContext(r.ctx, "worker finished", append(attrs, "exit_code", code)...)
	}
	return code, err
}

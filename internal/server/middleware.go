package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dfs-summarizer/summarizer/internal/log"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLog logs every finished request. The wrapped writer keeps the
// Flusher and Hijacker of the original one, streams depend on both.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := log.ContextAttrs(r.Context(), slog.String("request_id", middleware.GetReqID(r.Context())))
		r = r.WithContext(ctx)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			// hijacked or nothing written
			status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "http request", attrs...)
			return
		}
		slog.InfoContext(ctx, "http request", attrs...)
	})
}

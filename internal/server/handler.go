package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dfs-summarizer/summarizer/internal/model"
	"github.com/dfs-summarizer/summarizer/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

const rootMessage = "OneFootball DFS Summarizer API"

// Starter starts a new run for every call.
type Starter interface {
	Start(ctx context.Context) (*service.Run, error)
}

type handler struct {
	runs     Starter
	upgrader websocket.Upgrader
}

// NewHandler returns the HTTP API:
//
//	GET /           fixed service information
//	GET /healthz    liveness
//	GET /scrape     one run streamed as server-sent events or plain text
//	GET /scrape/ws  one run streamed over a websocket
func NewHandler(runs Starter, cfg Config) http.Handler {
	h := &handler{
		runs: runs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLog)
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
			ExposedHeaders: []string{runIDHeader},
		}))
	}

	r.Get("/", h.root)
	r.Get("/healthz", h.healthz)
	r.Get("/scrape", h.scrape)
	r.Get("/scrape/ws", h.scrapeWS)
	return r
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": serviceName,
		"status":  "ok",
	})
}

func (h *handler) scrape(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, model.ErrStreamingUnsupported.Error())
		return
	}

	run, err := h.runs.Start(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	enc := negotiate(r)
	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(runIDHeader, run.ID)
	w.WriteHeader(http.StatusOK)

	for ev := range run.Events() {
		if err := enc.Encode(w, ev); err != nil {
			slog.WarnContext(ctx, "writing event failed, caller gone", "run_id", run.ID, "error", err)
			return
		}
		flusher.Flush()
	}
}

const (
	wsWriteTimeout = 10 * time.Second
	wsCloseGrace   = time.Second
)

func (h *handler) scrapeWS(w http.ResponseWriter, r *http.Request) {
	// the hijacked connection is not watched by net/http, the reader
	// goroutine below cancels the run instead
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	run, err := h.runs.Start(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, http.Header{runIDHeader: []string{run.ID}})
	if err != nil {
		slog.WarnContext(ctx, "websocket upgrade failed", "run_id", run.ID, "error", err)
		cancel()
		run.Discard()
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range run.Events() {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			slog.WarnContext(ctx, "writing event failed, caller gone", "run_id", run.ID, "error", err)
			return
		}
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseGrace))
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

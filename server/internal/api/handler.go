package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/presencewatch/presencewatch/pkg/types"
	"github.com/presencewatch/presencewatch/server/internal/auth"
	"github.com/presencewatch/presencewatch/server/internal/ingest"
)

// maxBodyBytes caps ingestion request bodies.
const maxBodyBytes = 4 << 20

// Options wires the handler to the rest of the server.
type Options struct {
	Source     Source
	Dispatcher *ingest.Dispatcher
	Auth       auth.Policy
	// Metrics serves GET /metrics when non-nil.
	Metrics http.Handler
	// Stream serves GET /ws/stream when non-nil.
	Stream http.Handler
}

// Handler is the HTTP handler for every presence-server route.
type Handler struct {
	src     Source
	disp    *ingest.Dispatcher
	router  chi.Router
	started time.Time
	now     func() time.Time
}

// New creates a Handler and registers all routes.
func New(opts Options) *Handler {
	h := &Handler{
		src:     opts.Source,
		disp:    opts.Dispatcher,
		started: time.Now(),
		now:     time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/presence", h.listPresence)
		r.Get("/presence/{value}", h.getPresence)

		r.Group(func(r chi.Router) {
			r.Use(opts.Auth.Middleware)
			r.Use(func(next http.Handler) http.Handler {
				return http.MaxBytesHandler(next, maxBodyBytes)
			})
			r.Post("/datapoints", h.ingestJSON)
			r.Post("/push", h.ingestPrometheus)
		})
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Stream != nil {
		r.Method(http.MethodGet, "/ws/stream", opts.Stream)
	}

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Metric:       h.src.Metric(),
		Tag:          h.src.Tag(),
		TrackedCount: h.src.TrackedCount(),
		PresentCount: h.src.PresentCount(),
		Uptime:       h.now().Sub(h.started).Truncate(time.Second).String(),
	})
}

func (h *Handler) listPresence(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.src, h.now()))
}

func (h *Handler) getPresence(w http.ResponseWriter, r *http.Request) {
	e, ok := h.src.Lookup(chi.URLParam(r, "value"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "value not tracked")
		return
	}
	jsonResp(w, http.StatusOK, toEntryResponse(e))
}

func (h *Handler) ingestJSON(w http.ResponseWriter, r *http.Request) {
	events, err := ingest.DecodeJSON(r.Body)
	h.dispatch(w, events, err)
}

func (h *Handler) ingestPrometheus(w http.ResponseWriter, r *http.Request) {
	events, err := ingest.DecodePrometheus(r.Body, h.now())
	h.dispatch(w, events, err)
}

func (h *Handler) dispatch(w http.ResponseWriter, events []types.Event, err error) {
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, ingest.ErrMalformed):
			jsonErr(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("api: read ingest body", "err", err)
			jsonErr(w, http.StatusInternalServerError, "read body failed")
		}
		return
	}

	matched := h.disp.DispatchAll(events)
	jsonResp(w, http.StatusAccepted, IngestResponse{Accepted: len(events), Matched: matched})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"essaylens/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	Status() types.StatusResponse
	ListModels() types.ModelsResponse
	Chat(ctx context.Context, req types.ChatRequest) (types.ChatResponse, error)
	ChatStream(ctx context.Context, req types.ChatRequest, emit func(string) error) (int, error)
	JSON(ctx context.Context, req types.JSONRequest) (types.JSONResponse, error)
}

// NewMux builds the router. Call the Set* functions before NewMux.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(corsHandler())
	}

	h := &handlers{svc: svc}
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Get("/status", h.status)
	r.Get("/v1/models", h.models)
	r.Post("/v1/chat", h.chat)
	r.Post("/v1/json", h.jsonChat)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

func corsHandler() func(http.Handler) http.Handler {
	methods := corsAllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := corsAllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}

type handlers struct {
	svc Service
}

// healthz godoc
// @Summary  Liveness probe
// @Tags     health
// @Produce  plain
// @Success  200 {string} string "ok"
// @Router   /healthz [get]
func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyz godoc
// @Summary  Readiness probe
// @Tags     health
// @Produce  plain
// @Success  200 {string} string "ready"
// @Failure  503 {string} string "loading"
// @Router   /readyz [get]
func (h *handlers) readyz(w http.ResponseWriter, _ *http.Request) {
	if h.svc.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("loading"))
}

// status godoc
// @Summary  Backend status
// @Tags     status
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// models godoc
// @Summary  List local model files and the built-in catalog
// @Tags     models
// @Produce  json
// @Success  200 {object} types.ModelsResponse
// @Router   /v1/models [get]
func (h *handlers) models(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListModels())
}

// chat godoc
// @Summary      Chat with the configured backend
// @Description  With stream=true the reply is NDJSON: one {"token"} line per
// @Description  fragment and a final {"done":true} line.
// @Tags         chat
// @Accept       json
// @Produce      json,application/x-ndjson
// @Param        request body types.ChatRequest true "Chat request"
// @Success      200 {object} types.ChatResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      429 {object} types.ErrorResponse
// @Failure      502 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Router       /v1/chat [post]
func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.User) == "" {
		writeJSONError(w, http.StatusBadRequest, "user is required")
		return
	}
	cl := newCallLog(r)
	cl.start(req.Task, req.Stream)
	start := time.Now()
	ctx, cancel := callContext(r.Context())
	defer cancel()

	if req.Stream {
		status, err := h.stream(ctx, w, r, req, cl)
		cl.end(status, time.Since(start).Seconds(), err)
		return
	}
	resp, err := h.svc.Chat(ctx, req)
	if err != nil {
		cl.end(writeServiceError(w, err), time.Since(start).Seconds(), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	cl.end(http.StatusOK, time.Since(start).Seconds(), nil)
}

// stream writes NDJSON chunks. Headers go out with the first chunk, so errors
// raised before any output still get a proper status code. Later errors are
// reported on the final line.
func (h *handlers) stream(ctx context.Context, w http.ResponseWriter, r *http.Request, req types.ChatRequest, cl callLog) (int, error) {
	var out io.Writer = w
	if cl.lvl >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{rid: cl.rid})
	}
	enc := json.NewEncoder(out)
	flusher, _ := w.(http.Flusher)
	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
	}

	n, err := h.svc.ChatStream(ctx, req, func(tok string) error {
		begin()
		if err := enc.Encode(types.StreamChunk{Token: tok}); err != nil {
			return err
		}
		streamChunksTotal.Inc()
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && !started {
		if r.Context().Err() != nil {
			return 499, err
		}
		return writeServiceError(w, err), err
	}
	begin()
	final := types.StreamChunk{Done: true, Chunks: n}
	if err != nil {
		final.Error = err.Error()
	}
	_ = enc.Encode(final)
	if flusher != nil {
		flusher.Flush()
	}
	return http.StatusOK, err
}

// jsonChat godoc
// @Summary  Schema-constrained JSON chat
// @Tags     chat
// @Accept   json
// @Produce  json
// @Param    request body types.JSONRequest true "JSON request"
// @Success  200 {object} types.JSONResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  422 {object} types.ErrorResponse
// @Failure  502 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /v1/json [post]
func (h *handlers) jsonChat(w http.ResponseWriter, r *http.Request) {
	var req types.JSONRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cl := newCallLog(r)
	cl.start(req.Task, false)
	start := time.Now()
	ctx, cancel := callContext(r.Context())
	defer cancel()
	resp, err := h.svc.JSON(ctx, req)
	if err != nil {
		cl.end(writeServiceError(w, err), time.Since(start).Seconds(), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	cl.end(http.StatusOK, time.Since(start).Seconds(), nil)
}

// decodeBody checks the content type and decodes a size-limited JSON body
// into v. It writes the error response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

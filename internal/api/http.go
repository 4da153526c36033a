package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/flightchat/internal/config"
	"github.com/miradorstack/flightchat/internal/grpc/chatv1"
)

// HealthFunc reports extra fields for GET /health.
type HealthFunc func() map[string]any

// HTTPOptions configures the REST gateway.
type HTTPOptions struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	Health         HealthFunc
	Logger         *slog.Logger
}

// NewHTTPHandler exposes the chat service over JSON/HTTP.
func NewHTTPHandler(service chatv1.ChatServiceServer, opts HTTPOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &gateway{service: service, maxBody: opts.MaxBodyBytes, health: opts.Health, logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/health", g.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/chat", g.handleChat).Methods(http.MethodPost)
	router.HandleFunc("/chat/", g.handleChat).Methods(http.MethodPost)
	router.HandleFunc("/chat/sessions/{id}", g.handleResetSession).Methods(http.MethodDelete)
	router.HandleFunc("/analysis", g.handleAnalysis).Methods(http.MethodPost)
	router.HandleFunc("/analysis/", g.handleAnalysis).Methods(http.MethodPost)
	router.Use(g.recoveryMiddleware)
	router.Use(g.loggingMiddleware)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

// NewHTTPServer builds the REST listener for the configured address.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type gateway struct {
	service chatv1.ChatServiceServer
	maxBody int64
	health  HealthFunc
	logger  *slog.Logger
}

func (g *gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if g.health != nil {
		for k, v := range g.health() {
			body[k] = v
		}
	}
	respondJSON(w, http.StatusOK, body)
}

func (g *gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decode(w, r)
	if !ok {
		return
	}
	resp, err := g.service.Ask(r.Context(), req)
	g.respond(w, resp, err)
}

func (g *gateway) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decode(w, r)
	if !ok {
		return
	}
	resp, err := g.service.Analyse(r.Context(), req)
	g.respond(w, resp, err)
}

func (g *gateway) handleResetSession(w http.ResponseWriter, r *http.Request) {
	req, err := structpb.NewStruct(map[string]any{FieldSessionID: mux.Vars(r)["id"]})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := g.service.ResetSession(r.Context(), req)
	g.respond(w, resp, err)
}

func (g *gateway) decode(w http.ResponseWriter, r *http.Request) (*structpb.Struct, bool) {
	body := r.Body
	if g.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, g.maxBody)
	}
	var payload map[string]any
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return nil, false
	}
	req, err := structpb.NewStruct(payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return req, true
}

func (g *gateway) respond(w http.ResponseWriter, resp *structpb.Struct, err error) {
	if err != nil {
		st := status.Convert(err)
		respondError(w, HTTPStatusFromCode(st.Code()), st.Message())
		return
	}
	respondJSON(w, http.StatusOK, resp.AsMap())
}

func (g *gateway) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		g.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func (g *gateway) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				g.logger.Error("http handler panic", "path", r.URL.Path, "panic", rec)
				respondError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// HTTPStatusFromCode maps a gRPC code onto the REST status returned to clients.
func HTTPStatusFromCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return http.StatusRequestTimeout
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"detail": message})
}

// Package httpapi serves the intent router over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	logpkg "github.com/kamusis/skillroute/internal/logger"
	"github.com/kamusis/skillroute/internal/metrics"
	"github.com/kamusis/skillroute/internal/search"
	"github.com/kamusis/skillroute/internal/search/index"
	"github.com/kamusis/skillroute/internal/version"
)

const (
	defaultK     = 5
	maxBodyBytes = 64 << 10
)

// Router ranks skills for a query.
type Router interface {
	Search(query string) ([]search.SearchResult, error)
}

// Recorder captures a routed query as a trace.
type Recorder interface {
	Record(query string, match search.SearchResult) (string, error)
}

// IntentRequest is the body of POST /v1/intent.
type IntentRequest struct {
	Query  string `json:"query"`
	K      int    `json:"k,omitempty"`
	Record bool   `json:"record,omitempty"`
}

// IntentResponse is the reply of POST /v1/intent.
type IntentResponse struct {
	Query   string                `json:"query"`
	Results []search.SearchResult `json:"results"`
	Trace   string                `json:"trace,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server handles the intent API.
type Server struct {
	router   Router
	recorder Recorder
	logger   *zap.Logger
}

// NewServer returns a Server. recorder may be nil, in which case record requests are rejected.
func NewServer(router Router, recorder Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Register()
	return &Server{router: router, recorder: recorder, logger: logger}
}

// Handler returns the chi router with recovery, request id, logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Post("/v1/intent", s.Intent)
	r.Get("/healthz", s.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// Intent handles POST /v1/intent.
func (s *Server) Intent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required")
		return
	}
	if req.Record && s.recorder == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "trace recording is disabled")
		return
	}
	k := req.K
	if k <= 0 {
		k = defaultK
	}

	start := time.Now()
	results, err := s.router.Search(req.Query)
	if err != nil {
		if errors.Is(err, index.ErrNotBuilt) {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "index is not built")
			return
		}
		logpkg.FromContext(r.Context()).Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	source := ""
	if len(results) > 0 {
		source = results[0].Source
	}
	metrics.ObserveSearch(source, time.Since(start))

	resp := IntentResponse{Query: req.Query, Results: results}
	if len(resp.Results) > k {
		resp.Results = resp.Results[:k]
	}
	if resp.Results == nil {
		resp.Results = []search.SearchResult{}
	}
	if req.Record && len(results) > 0 {
		path, err := s.recorder.Record(req.Query, results[0])
		if err != nil {
			logpkg.FromContext(r.Context()).Warn("cannot record trace", zap.Error(err))
		} else {
			resp.Trace = path
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		version.Info
	}{Status: "ok", Info: version.Get()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// jsonRecoverer returns a JSON 500 instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered", zap.Any("panic", rvr), zap.Stack("stacktrace"))
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one log line per request and puts a request-scoped
// logger into the context.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

// Package web serves athenaq queries over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/kent-id/athenaq"
	"github.com/kent-id/athenaq/logging"
	"github.com/kent-id/athenaq/retry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"
)

const requestIDHeader = "X-Request-Id"

// authErrorCodes are the service error codes reported to clients as 401.
var authErrorCodes = map[string]bool{
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"InvalidClientTokenId":        true,
	"InvalidSignatureException":   true,
	"MissingAuthenticationToken":  true,
	"SignatureDoesNotMatch":       true,
	"UnrecognizedClientException": true,
}

// Runner executes one query request.
type Runner interface {
	Run(ctx context.Context, req athenaq.Request) (*athenaq.Outcome, error)
}

// Info is the non-secret configuration shown by GET /api/config.
type Info struct {
	Region    string `json:"region"`
	Database  string `json:"database"`
	Workgroup string `json:"workgroup"`
}

// Server provides the query API plus health and metrics endpoints.
type Server struct {
	runner Runner
	info   Info
	group  singleflight.Group
	server *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, runner Runner, info Info) *Server {
	mux := http.NewServeMux()
	s := &Server{
		runner: runner,
		info:   info,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	logging.Logger().Info().Str("addr", s.server.Addr).Msg("starting web server")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Columns   []athenaq.Column      `json:"columns"`
	Rows      [][]athenaq.CellValue `json:"rows"`
	RowCount  int                   `json:"row_count"`
	FromCache bool                  `json:"from_cache"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: s.info})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, requestID)
	log := logging.Logger().With().Str("request_id", requestID).Logger()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "Request must be JSON")
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request must be JSON")
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, "Missing or empty 'sql' field")
		return
	}

	// identical concurrent queries share one execution; it outlives any single client
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := s.group.Do(req.SQL, func() (interface{}, error) {
		return s.runner.Run(ctx, athenaq.Request{SQL: req.SQL, Caching: true})
	})
	if err != nil {
		status, msg := errorResponse(err)
		log.Error().Err(err).Int("status", status).Msg("query failed")
		writeError(w, status, msg)
		return
	}

	outcome := v.(*athenaq.Outcome)
	log.Info().
		Str("execution_id", outcome.ExecutionID).
		Bool("from_cache", outcome.FromCache).
		Bool("shared", shared).
		Int("rows", outcome.Result.RowCount).
		Msg("query served")

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: queryResponse{
		Columns:   outcome.Result.Columns,
		Rows:      outcome.Result.Rows,
		RowCount:  outcome.Result.RowCount,
		FromCache: outcome.FromCache,
	}})
}

// errorResponse maps an engine error to an HTTP status and client-facing message.
func errorResponse(err error) (int, string) {
	var queryErr *athenaq.QueryExecutionError
	var timeoutErr *athenaq.PollTimeoutError
	var remoteErr *athenaq.RemoteError
	switch {
	case errors.As(err, &queryErr):
		return http.StatusInternalServerError, queryErr.Error()
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, timeoutErr.Error()
	case errors.As(err, &remoteErr):
		if remoteErr.Class == retry.Permanent && isAuthError(remoteErr.Err) {
			return http.StatusUnauthorized, remoteErr.Error()
		}
		return http.StatusBadGateway, remoteErr.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func isAuthError(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()]
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeJSON encodes v before committing status, so an unencodable body becomes a 500.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("failed to encode response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(envelope{Success: false, Error: "Internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logging.Logger().Warn().Err(err).Msg("failed to write response")
	}
}

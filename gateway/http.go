package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/izavyalov-dev/recipebox/internal/observability"
)

// DefaultMaxBodyBytes caps GraphQL request bodies.
const DefaultMaxBodyBytes = 1 << 20

// HandlerConfig wires the gateway to its collaborators.
type HandlerConfig struct {
	Service Service
	// Ready reports whether the backing store is reachable. Nil means always ready.
	Ready   func(ctx context.Context) error
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// MetricsHandler serves /metrics; defaults to the Prometheus default registry.
	MetricsHandler http.Handler

	RateLimit      rate.Limit
	RateLimitBurst int
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// GraphQLRequest is the body accepted on POST /graphql.
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// ErrorResponse is returned for requests rejected before GraphQL execution.
type ErrorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
	Retryable bool      `json:"retryable"`
}

type handler struct {
	schema      graphql.Schema
	ready       func(ctx context.Context) error
	logger      *slog.Logger
	metrics     *observability.Metrics
	rateLimiter *rate.Limiter
	maxBody     int64
}

// NewHTTPHandler wires the GraphQL endpoint, probes and metrics.
func NewHTTPHandler(cfg HandlerConfig) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger("gateway.http")
	}

	schema, err := NewSchema(cfg.Service, logger)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = observability.MetricsHandler()
	}

	h := &handler{
		schema:      schema,
		ready:       cfg.Ready,
		logger:      logger,
		metrics:     cfg.Metrics,
		rateLimiter: rate.NewLimiter(limit, burst),
		maxBody:     maxBody,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", h.handleReady)
	mux.HandleFunc("/graphql", h.withMiddleware(h.handleGraphQL))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	})

	return c.Handler(mux), nil
}

func (h *handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.ready(ctx); err != nil {
		h.logger.Warn("readiness check failed", "event", "readiness_failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, CodeStorageUnavailable, "storage unavailable", true)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req GraphQLRequest
	switch r.Method {
	case http.MethodPost:
		var err error
		req, err = requestFromBody(r, http.MaxBytesReader(w, r.Body, h.maxBody))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("invalid request body: %v", err), false)
			return
		}
	case http.MethodGet:
		var err error
		req, err = requestFromQuery(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error(), false)
			return
		}
		if isMutation(req.Query) {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "mutations must be sent with POST", false)
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", false)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "query is required", false)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})

	status := http.StatusOK
	if result.Data == nil && result.HasErrors() && !resolverFailed(result) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

// resolverFailed reports whether any error came from field execution. Parse
// and validation errors carry no path; a failed non-null field can still null
// out the whole data object.
func resolverFailed(result *graphql.Result) bool {
	for _, err := range result.Errors {
		if len(err.Path) > 0 {
			return true
		}
	}
	return false
}

// requestFromBody reads a JSON request, or a bare query document when the
// body is sent as application/graphql.
func requestFromBody(r *http.Request, body io.Reader) (GraphQLRequest, error) {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mediaType == "application/graphql" {
		raw, err := io.ReadAll(body)
		if err != nil {
			return GraphQLRequest{}, err
		}
		return GraphQLRequest{Query: string(raw)}, nil
	}

	var req GraphQLRequest
	if err := decodeJSON(body, &req); err != nil {
		return GraphQLRequest{}, err
	}
	return req, nil
}

func requestFromQuery(r *http.Request) (GraphQLRequest, error) {
	values := r.URL.Query()
	req := GraphQLRequest{
		Query:         values.Get("query"),
		OperationName: values.Get("operationName"),
	}
	if raw := values.Get("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
			return GraphQLRequest{}, fmt.Errorf("invalid variables: %w", err)
		}
	}
	return req, nil
}

// isMutation reports whether the document declares a mutation. Unparseable
// documents report false and fail later during execution.
func isMutation(query string) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op.Operation == "mutation" {
			return true
		}
	}
	return false
}

func decodeJSON(body io.Reader, target any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after request object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, retryable bool) {
	requestID := RequestIDFromContext(r.Context())
	if requestID == "" {
		requestID = uuid.New().String()
	}
	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Retryable: retryable,
	})
}

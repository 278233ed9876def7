package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/izavyalov-dev/recipebox/internal/observability"
	"github.com/izavyalov-dev/recipebox/recipes"
	"github.com/izavyalov-dev/recipebox/state"
)

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message    string                 `json:"message"`
		Extensions map[string]interface{} `json:"extensions"`
	} `json:"errors"`
}

type recipeJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestHandler(t *testing.T, mutate func(*HandlerConfig)) http.Handler {
	t.Helper()
	registry := prometheus.NewRegistry()
	cfg := HandlerConfig{
		Service:        recipes.NewStore(state.NewMemoryCollection(recipes.CollectionName)),
		Logger:         observability.Discard(),
		Metrics:        observability.NewMetrics(registry),
		MetricsHandler: observability.HandlerFor(registry),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := NewHTTPHandler(cfg)
	require.NoError(t, err)
	return h
}

func postGraphQL(t *testing.T, h http.Handler, query string, variables map[string]interface{}) (*httptest.ResponseRecorder, gqlResponse) {
	t.Helper()
	body, err := json.Marshal(GraphQLRequest{Query: query, Variables: variables})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

// nullIfMissing treats a nulled-out data object like an explicit null field.
func nullIfMissing(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func decodeRecipe(t *testing.T, raw json.RawMessage) *recipeJSON {
	t.Helper()
	if string(raw) == "null" {
		return nil
	}
	var out recipeJSON
	require.NoError(t, json.Unmarshal(raw, &out))
	return &out
}

const (
	addMutation    = `mutation($name: String!) { addRecipe(recipe: {name: $name}) { id name } }`
	getQuery       = `query($id: ID) { recipe(id: $id) { id name } }`
	updateMutation = `mutation($id: ID, $name: String) { updateRecipe(recipe: {id: $id, name: $name}) { id name } }`
	deleteMutation = `mutation($id: ID!) { deleteRecipe(id: $id) { id name } }`
	listQuery      = `query($limit: Int) { recipes(limit: $limit) { id name } }`
)

func TestGraphQLLifecycle(t *testing.T) {
	h := newTestHandler(t, nil)

	rec, resp := postGraphQL(t, h, addMutation, map[string]interface{}{"name": "Soup"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, resp.Errors)
	created := decodeRecipe(t, resp.Data["addRecipe"])
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Soup", created.Name)

	_, resp = postGraphQL(t, h, updateMutation, map[string]interface{}{"id": created.ID, "name": "Stew"})
	require.Empty(t, resp.Errors)
	updated := decodeRecipe(t, resp.Data["updateRecipe"])
	require.NotNil(t, updated)
	assert.Equal(t, recipeJSON{ID: created.ID, Name: "Stew"}, *updated)

	_, resp = postGraphQL(t, h, getQuery, map[string]interface{}{"id": created.ID})
	require.Empty(t, resp.Errors)
	assert.Equal(t, "Stew", decodeRecipe(t, resp.Data["recipe"]).Name)

	_, resp = postGraphQL(t, h, deleteMutation, map[string]interface{}{"id": created.ID})
	require.Empty(t, resp.Errors)
	assert.Equal(t, recipeJSON{ID: created.ID, Name: "Stew"}, *decodeRecipe(t, resp.Data["deleteRecipe"]))

	rec, resp = postGraphQL(t, h, getQuery, map[string]interface{}{"id": created.ID})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeRecipe(t, resp.Data["recipe"]))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeNotFound, resp.Errors[0].Extensions["code"])

	_, resp = postGraphQL(t, h, deleteMutation, map[string]interface{}{"id": created.ID})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeNotFound, resp.Errors[0].Extensions["code"])
}

func TestGraphQLAddRecipeValidation(t *testing.T) {
	h := newTestHandler(t, nil)

	_, resp := postGraphQL(t, h, addMutation, map[string]interface{}{"name": "  "})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeValidation, resp.Errors[0].Extensions["code"])
	assert.Equal(t, "name", resp.Errors[0].Extensions["field"])
	assert.Nil(t, decodeRecipe(t, resp.Data["addRecipe"]))

	_, resp = postGraphQL(t, h, listQuery, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `[]`, string(resp.Data["recipes"]))
}

func TestGraphQLMissingNameFailsSchemaValidation(t *testing.T) {
	h := newTestHandler(t, nil)

	rec, resp := postGraphQL(t, h, `mutation { addRecipe(recipe: {}) { id } }`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, resp.Errors)
}

func TestGraphQLUpdateAcceptsUnderscoreID(t *testing.T) {
	h := newTestHandler(t, nil)

	_, resp := postGraphQL(t, h, addMutation, map[string]interface{}{"name": "Soup"})
	created := decodeRecipe(t, resp.Data["addRecipe"])
	require.NotNil(t, created)

	_, resp = postGraphQL(t, h,
		`mutation($id: ID) { updateRecipe(recipe: {_id: $id, name: "Stew"}) { _id name } }`,
		map[string]interface{}{"id": created.ID})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"_id":"`+created.ID+`","name":"Stew"}`, string(resp.Data["updateRecipe"]))
}

func TestGraphQLUpdateUnknownIsNotFound(t *testing.T) {
	h := newTestHandler(t, nil)

	_, resp := postGraphQL(t, h, updateMutation, map[string]interface{}{"id": "abc123", "name": "Stew"})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeNotFound, resp.Errors[0].Extensions["code"])
}

func TestGraphQLListLimit(t *testing.T) {
	h := newTestHandler(t, nil)

	for _, name := range []string{"a", "b", "c"} {
		_, resp := postGraphQL(t, h, addMutation, map[string]interface{}{"name": name})
		require.Empty(t, resp.Errors)
	}

	_, resp := postGraphQL(t, h, listQuery, map[string]interface{}{"limit": 2})
	require.Empty(t, resp.Errors)
	var list []recipeJSON
	require.NoError(t, json.Unmarshal(resp.Data["recipes"], &list))
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)

	_, resp = postGraphQL(t, h, `{ recipes { name } }`, nil)
	require.Empty(t, resp.Errors)
	require.NoError(t, json.Unmarshal(resp.Data["recipes"], &list))
	assert.Len(t, list, 3)

	_, resp = postGraphQL(t, h, listQuery, map[string]interface{}{"limit": -1})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeValidation, resp.Errors[0].Extensions["code"])
	assert.Equal(t, "limit", resp.Errors[0].Extensions["field"])
}

type brokenService struct{}

func (brokenService) Get(context.Context, string) (recipes.Recipe, error) {
	return recipes.Recipe{}, errors.Join(recipes.ErrStorageUnavailable, errors.New("dial tcp: connection refused"))
}
func (brokenService) List(context.Context, recipes.ListInput) ([]recipes.Recipe, error) {
	return nil, errors.New("boom")
}
func (brokenService) Create(context.Context, recipes.CreateRecipeInput) (recipes.Recipe, error) {
	return recipes.Recipe{}, nil
}
func (brokenService) Update(context.Context, recipes.UpdateRecipeInput) (recipes.Recipe, error) {
	return recipes.Recipe{}, nil
}
func (brokenService) Delete(context.Context, string) (recipes.Recipe, error) {
	return recipes.Recipe{}, nil
}

func TestGraphQLStorageFailuresHideDetails(t *testing.T) {
	h := newTestHandler(t, func(cfg *HandlerConfig) { cfg.Service = brokenService{} })

	_, resp := postGraphQL(t, h, getQuery, map[string]interface{}{"id": "x"})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeStorageUnavailable, resp.Errors[0].Extensions["code"])
	assert.NotContains(t, resp.Errors[0].Message, "connection refused")

	rec, resp := postGraphQL(t, h, listQuery, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, CodeInternal, resp.Errors[0].Extensions["code"])
	assert.Nil(t, decodeRecipe(t, nullIfMissing(resp.Data["recipes"])))
}

func TestGraphQLGetRequests(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(`{ recipes { id } }`), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"recipes":[]}}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(`mutation { deleteRecipe(id: "x") { id } }`), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGraphQLRawQueryBody(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`mutation { addRecipe(recipe: {name: "Soup"}) { name } }`))
	req.Header.Set("Content-Type", "application/graphql; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"addRecipe":{"name":"Soup"}}}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{ recipes { name } }`))
	req.Header.Set("Content-Type", "application/graphql")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.JSONEq(t, `{"data":{"recipes":[{"name":"Soup"}]}}`, rec.Body.String())
}

func TestGraphQLRejectsBadRequests(t *testing.T) {
	h := newTestHandler(t, nil)

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "malformed json", method: http.MethodPost, body: `{"query":`, status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, body: `{"query":"{ recipes { id } }","extra":1}`, status: http.StatusBadRequest},
		{name: "empty query", method: http.MethodPost, body: `{"query":"  "}`, status: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodPut, body: `{}`, status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/graphql", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.NotEmpty(t, errResp.Code)
			assert.NotEmpty(t, errResp.RequestID)
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	h := newTestHandler(t, nil)

	provided := uuid.New().String()
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{"query":"{ recipes { id } }"}`))
	req.Header.Set("X-Request-Id", provided)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, provided, rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{"query":"{ recipes { id } }"}`))
	req.Header.Set("X-Request-Id", "not-a-uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	generated := rec.Header().Get("X-Request-Id")
	assert.NotEqual(t, "not-a-uuid", generated)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, func(cfg *HandlerConfig) {
		cfg.RateLimit = 0.001
		cfg.RateLimitBurst = 1
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{"query":"{ recipes { id } }"}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	h := &handler{
		logger:      observability.Discard(),
		rateLimiter: rate.NewLimiter(rate.Inf, 1),
	}
	wrapped := h.withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	rec := httptest.NewRecorder()
	wrapped(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, CodeInternal, errResp.Code)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), errResp.RequestID)
}

func TestMiddlewareCountsFinalStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	h := &handler{
		logger:      observability.Discard(),
		metrics:     observability.NewMetrics(registry),
		rateLimiter: rate.NewLimiter(rate.Inf, 1),
	}

	h.withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/graphql", nil))
	h.withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/graphql", nil))

	expected := `
# HELP recipebox_http_requests_total Total HTTP requests by method, path and status.
# TYPE recipebox_http_requests_total counter
recipebox_http_requests_total{method="POST",path="/graphql",status="200"} 1
recipebox_http_requests_total{method="POST",path="/graphql",status="500"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "recipebox_http_requests_total"))
}

func TestStatusRecorder(t *testing.T) {
	rec := recordStatus(httptest.NewRecorder())
	assert.Same(t, rec, recordStatus(rec))
	assert.Equal(t, http.StatusOK, rec.code())

	rec.WriteHeader(http.StatusTeapot)
	rec.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusTeapot, rec.code())
}

func TestProbesAndMetrics(t *testing.T) {
	readyErr := errors.New("db down")
	h := newTestHandler(t, func(cfg *HandlerConfig) {
		cfg.Ready = func(context.Context) error { return readyErr }
	})

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusServiceUnavailable,
		"/metrics": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, path)
	}

	readyErr = nil
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, func(cfg *HandlerConfig) {
		cfg.AllowedOrigins = []string{"https://cookbook.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "https://cookbook.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://cookbook.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewHTTPHandlerRequiresService(t *testing.T) {
	_, err := NewHTTPHandler(HandlerConfig{Logger: observability.Discard()})
	assert.Error(t, err)
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/izavyalov-dev/recipebox/recipes"
)

// Error codes reported by the gateway.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// Error is a GraphQL error returned by the gateway.
type Error struct {
	Code    string
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// IsNotFound reports whether err is a NOT_FOUND error from the gateway.
func IsNotFound(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Code == CodeNotFound
}

// HTTPClient talks to the gateway's /graphql endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

const recipeFields = `id name`

func (c *HTTPClient) Recipe(ctx context.Context, id string) (recipes.Recipe, error) {
	var out struct {
		Recipe *recipes.Recipe `json:"recipe"`
	}
	err := c.do(ctx, `query($id: ID) { recipe(id: $id) { `+recipeFields+` } }`, map[string]any{"id": id}, &out)
	if err != nil {
		return recipes.Recipe{}, err
	}
	if out.Recipe == nil {
		return recipes.Recipe{}, &Error{Code: CodeNotFound, Message: "recipe not found"}
	}
	return *out.Recipe, nil
}

func (c *HTTPClient) Recipes(ctx context.Context, limit int) ([]recipes.Recipe, error) {
	var out struct {
		Recipes []recipes.Recipe `json:"recipes"`
	}
	err := c.do(ctx, `query($limit: Int) { recipes(limit: $limit) { `+recipeFields+` } }`, map[string]any{"limit": limit}, &out)
	if err != nil {
		return nil, err
	}
	return out.Recipes, nil
}

func (c *HTTPClient) AddRecipe(ctx context.Context, name string) (recipes.Recipe, error) {
	var out struct {
		AddRecipe recipes.Recipe `json:"addRecipe"`
	}
	err := c.do(ctx, `mutation($name: String!) { addRecipe(recipe: {name: $name}) { `+recipeFields+` } }`, map[string]any{"name": name}, &out)
	return out.AddRecipe, err
}

func (c *HTTPClient) UpdateRecipe(ctx context.Context, id, name string) (recipes.Recipe, error) {
	var out struct {
		UpdateRecipe recipes.Recipe `json:"updateRecipe"`
	}
	err := c.do(ctx, `mutation($id: ID, $name: String) { updateRecipe(recipe: {id: $id, name: $name}) { `+recipeFields+` } }`, map[string]any{"id": id, "name": name}, &out)
	return out.UpdateRecipe, err
}

func (c *HTTPClient) DeleteRecipe(ctx context.Context, id string) (recipes.Recipe, error) {
	var out struct {
		DeleteRecipe recipes.Recipe `json:"deleteRecipe"`
	}
	err := c.do(ctx, `mutation($id: ID!) { deleteRecipe(id: $id) { `+recipeFields+` } }`, map[string]any{"id": id}, &out)
	return out.DeleteRecipe, err
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) do(ctx context.Context, query string, variables map[string]any, target any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var gql graphQLResponse
	if err := json.Unmarshal(payload, &gql); err != nil || (gql.Data == nil && len(gql.Errors) == 0) {
		var errResp errorResponse
		if json.Unmarshal(payload, &errResp) == nil && errResp.Code != "" {
			return &Error{Code: errResp.Code, Message: errResp.Message}
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if len(gql.Errors) > 0 {
		first := gql.Errors[0]
		gerr := &Error{Message: first.Message}
		if code, ok := first.Extensions["code"].(string); ok {
			gerr.Code = code
		}
		if field, ok := first.Extensions["field"].(string); ok {
			gerr.Field = field
		}
		return gerr
	}

	return json.Unmarshal(gql.Data, target)
}

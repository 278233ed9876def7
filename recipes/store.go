package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/izavyalov-dev/recipebox/internal/observability"
	"github.com/izavyalov-dev/recipebox/state"
)

// CollectionName is the document collection recipes are stored in.
const CollectionName = "recipes"

// DefaultOperationTimeout bounds every store operation unless overridden.
const DefaultOperationTimeout = 5 * time.Second

// Collection is the document storage contract the store depends on.
// Implementations assign ids on Insert and report missing ids with
// state.ErrNotFound.
type Collection interface {
	Insert(ctx context.Context, body []byte) (state.Document, error)
	FindByID(ctx context.Context, id string) (state.Document, error)
	FindAll(ctx context.Context, limit int) ([]state.Document, error)
	Replace(ctx context.Context, id string, body []byte) (state.Document, error)
	RemoveByID(ctx context.Context, id string) (state.Document, error)
}

// Store validates recipe requests and maps them onto a document collection.
// It keeps no state between calls.
type Store struct {
	collection Collection
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Option customizes a Store.
type Option func(*Store)

// WithTimeout sets the per-operation deadline. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

func NewStore(collection Collection, opts ...Option) *Store {
	s := &Store{
		collection: collection,
		timeout:    DefaultOperationTimeout,
		logger:     observability.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the recipe with the given id.
func (s *Store) Get(ctx context.Context, id string) (Recipe, error) {
	var recipe Recipe
	err := s.run(ctx, "get", func(ctx context.Context) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty id", ErrNotFound)
		}
		doc, err := s.collection.FindByID(ctx, id)
		if err != nil {
			return storageError("get", id, err)
		}
		recipe, err = decode(doc)
		return err
	})
	return recipe, err
}

// List returns recipes in insertion order, bounded by in.Limit when positive.
func (s *Store) List(ctx context.Context, in ListInput) ([]Recipe, error) {
	if err := in.Validate(); err != nil {
		s.observe("list", err, 0)
		return nil, err
	}

	var out []Recipe
	err := s.run(ctx, "list", func(ctx context.Context) error {
		docs, err := s.collection.FindAll(ctx, in.Limit)
		if err != nil {
			return storageError("list", "", err)
		}
		out = make([]Recipe, 0, len(docs))
		for _, doc := range docs {
			recipe, err := decode(doc)
			if err != nil {
				return err
			}
			out = append(out, recipe)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create validates in, persists a new recipe and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, in CreateRecipeInput) (Recipe, error) {
	if err := in.Validate(); err != nil {
		s.observe("create", err, 0)
		return Recipe{}, err
	}

	var recipe Recipe
	err := s.run(ctx, "create", func(ctx context.Context) error {
		body, err := encode(strings.TrimSpace(in.Name))
		if err != nil {
			return err
		}
		doc, err := s.collection.Insert(ctx, body)
		if err != nil {
			return storageError("create", "", err)
		}
		recipe, err = decode(doc)
		return err
	})
	if err != nil {
		return Recipe{}, err
	}

	observability.WithRecipe(s.logger, recipe.ID).Info("recipe created", "event", "recipe_created")
	return recipe, nil
}

// Update applies in to an existing recipe.
func (s *Store) Update(ctx context.Context, in UpdateRecipeInput) (Recipe, error) {
	if err := in.Validate(); err != nil {
		s.observe("update", err, 0)
		return Recipe{}, err
	}

	var recipe Recipe
	err := s.run(ctx, "update", func(ctx context.Context) error {
		doc, err := s.collection.FindByID(ctx, in.ID)
		if err != nil {
			return storageError("update", in.ID, err)
		}
		current, err := decode(doc)
		if err != nil {
			return err
		}
		if in.Name != nil {
			current.Name = strings.TrimSpace(*in.Name)
		}

		body, err := encode(current.Name)
		if err != nil {
			return err
		}
		// A concurrent delete between the read and this write surfaces as not found.
		doc, err = s.collection.Replace(ctx, current.ID, body)
		if err != nil {
			return storageError("update", in.ID, err)
		}
		recipe, err = decode(doc)
		return err
	})
	if err != nil {
		return Recipe{}, err
	}

	observability.WithRecipe(s.logger, recipe.ID).Info("recipe updated", "event", "recipe_updated")
	return recipe, nil
}

// Delete removes a recipe and returns its last stored state.
func (s *Store) Delete(ctx context.Context, id string) (Recipe, error) {
	var recipe Recipe
	err := s.run(ctx, "delete", func(ctx context.Context) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty id", ErrNotFound)
		}
		doc, err := s.collection.RemoveByID(ctx, id)
		if err != nil {
			return storageError("delete", id, err)
		}
		recipe, err = decode(doc)
		return err
	})
	if err != nil {
		return Recipe{}, err
	}

	observability.WithRecipe(s.logger, recipe.ID).Info("recipe deleted", "event", "recipe_deleted")
	return recipe, nil
}

func (s *Store) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(ctx)
	s.observe(operation, err, time.Since(start))
	if err != nil && errors.Is(err, ErrStorageUnavailable) {
		s.logger.Error("recipe storage failed", "event", "storage_failed", "operation", operation, "error", err)
	}
	return err
}

func (s *Store) observe(operation string, err error, elapsed time.Duration) {
	s.metrics.ObserveOperation(operation, Kind(err), elapsed)
}

func storageError(operation, id string, err error) error {
	if errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, operation, err)
}

func encode(name string) ([]byte, error) {
	return json.Marshal(document{Name: name})
}

func decode(doc state.Document) (Recipe, error) {
	var body document
	if err := json.Unmarshal(doc.Body, &body); err != nil {
		return Recipe{}, fmt.Errorf("decode recipe %s: %w", doc.ID, err)
	}
	return Recipe{ID: doc.ID, Name: body.Name}, nil
}

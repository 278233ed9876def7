package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphql-go/graphql"

	"github.com/izavyalov-dev/recipebox/recipes"
)

// Service is the recipe store surface the schema resolves against.
type Service interface {
	Get(ctx context.Context, id string) (recipes.Recipe, error)
	List(ctx context.Context, in recipes.ListInput) ([]recipes.Recipe, error)
	Create(ctx context.Context, in recipes.CreateRecipeInput) (recipes.Recipe, error)
	Update(ctx context.Context, in recipes.UpdateRecipeInput) (recipes.Recipe, error)
	Delete(ctx context.Context, id string) (recipes.Recipe, error)
}

// NewSchema builds the query/mutation schema:
//
//	type Recipe { id: ID!  _id: ID!  name: String! }
//	type Query { recipe(id: ID): Recipe  recipes(limit: Int = 0): [Recipe!]! }
//	type Mutation {
//	  addRecipe(recipe: AddRecipeInput!): Recipe
//	  updateRecipe(recipe: UpdateRecipeInput!): Recipe
//	  deleteRecipe(id: ID!): Recipe
//	}
//
// _id mirrors id for clients written against document-style ids.
func NewSchema(service Service, logger *slog.Logger) (graphql.Schema, error) {
	if service == nil {
		return graphql.Schema{}, fmt.Errorf("gateway: service is required")
	}
	r := resolvers{service: service, logger: logger}

	recipeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Recipe",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.ID),
				Resolve: recipeField(func(rec recipes.Recipe) string { return rec.ID }),
			},
			"_id": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.ID),
				Resolve: recipeField(func(rec recipes.Recipe) string { return rec.ID }),
			},
			"name": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.String),
				Resolve: recipeField(func(rec recipes.Recipe) string { return rec.Name }),
			},
		},
	})

	addInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "AddRecipeInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	updateInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UpdateRecipeInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"id":   &graphql.InputObjectFieldConfig{Type: graphql.ID},
			"_id":  &graphql.InputObjectFieldConfig{Type: graphql.ID},
			"name": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"recipe": &graphql.Field{
				Type: recipeType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.ID},
				},
				Resolve: r.getRecipe,
			},
			"recipes": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(recipeType))),
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: r.listRecipes,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addRecipe": &graphql.Field{
				Type: recipeType,
				Args: graphql.FieldConfigArgument{
					"recipe": &graphql.ArgumentConfig{Type: graphql.NewNonNull(addInput)},
				},
				Resolve: r.addRecipe,
			},
			"updateRecipe": &graphql.Field{
				Type: recipeType,
				Args: graphql.FieldConfigArgument{
					"recipe": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateInput)},
				},
				Resolve: r.updateRecipe,
			},
			"deleteRecipe": &graphql.Field{
				Type: recipeType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.deleteRecipe,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}

type resolvers struct {
	service Service
	logger  *slog.Logger
}

func (r resolvers) getRecipe(p graphql.ResolveParams) (interface{}, error) {
	id, _ := stringArg(p.Args, "id")
	rec, err := r.service.Get(p.Context, id)
	if err != nil {
		return nil, classify(p.Context, r.logger, "recipe", err)
	}
	return rec, nil
}

func (r resolvers) listRecipes(p graphql.ResolveParams) (interface{}, error) {
	limit, _ := p.Args["limit"].(int)
	list, err := r.service.List(p.Context, recipes.ListInput{Limit: limit})
	if err != nil {
		return nil, classify(p.Context, r.logger, "recipes", err)
	}
	return list, nil
}

func (r resolvers) addRecipe(p graphql.ResolveParams) (interface{}, error) {
	input, _ := p.Args["recipe"].(map[string]interface{})
	name, _ := stringArg(input, "name")
	rec, err := r.service.Create(p.Context, recipes.CreateRecipeInput{Name: name})
	if err != nil {
		return nil, classify(p.Context, r.logger, "addRecipe", err)
	}
	return rec, nil
}

func (r resolvers) updateRecipe(p graphql.ResolveParams) (interface{}, error) {
	input, _ := p.Args["recipe"].(map[string]interface{})

	id, ok := stringArg(input, "id")
	if !ok || id == "" {
		id, _ = stringArg(input, "_id")
	}
	update := recipes.UpdateRecipeInput{ID: id}
	if name, ok := stringArg(input, "name"); ok {
		update.Name = &name
	}

	rec, err := r.service.Update(p.Context, update)
	if err != nil {
		return nil, classify(p.Context, r.logger, "updateRecipe", err)
	}
	return rec, nil
}

func (r resolvers) deleteRecipe(p graphql.ResolveParams) (interface{}, error) {
	id, _ := stringArg(p.Args, "id")
	rec, err := r.service.Delete(p.Context, id)
	if err != nil {
		return nil, classify(p.Context, r.logger, "deleteRecipe", err)
	}
	return rec, nil
}

func recipeField(get func(recipes.Recipe) string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		switch rec := p.Source.(type) {
		case recipes.Recipe:
			return get(rec), nil
		case *recipes.Recipe:
			if rec == nil {
				return nil, nil
			}
			return get(*rec), nil
		default:
			return nil, nil
		}
	}
}

// stringArg reads a string argument. ID arguments may arrive as strings or
// integers depending on how the client wrote them.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	if args == nil {
		return "", false
	}
	switch v := args[key].(type) {
	case string:
		return v, true
	case int:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

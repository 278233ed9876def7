package backup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/izavyalov-dev/recipebox/recipes"
)

// Lister is the subset of recipes.Store a snapshot needs.
type Lister interface {
	List(ctx context.Context, input recipes.ListInput) ([]recipes.Recipe, error)
}

// Snapshot is a point-in-time dump of the recipe collection.
type Snapshot struct {
	TakenAt time.Time        `json:"taken_at"`
	Count   int              `json:"count"`
	Recipes []recipes.Recipe `json:"recipes"`
}

// Take lists every recipe and stamps the result with now.
func Take(ctx context.Context, lister Lister, now time.Time) (Snapshot, error) {
	list, err := lister.List(ctx, recipes.ListInput{})
	if err != nil {
		return Snapshot{}, err
	}
	if list == nil {
		list = []recipes.Recipe{}
	}
	return Snapshot{
		TakenAt: now.UTC(),
		Count:   len(list),
		Recipes: list,
	}, nil
}

func (s Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

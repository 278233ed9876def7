package recipes

import (
	"strings"
	"unicode/utf8"
)

// MaxNameLength bounds the number of characters in a recipe name.
const MaxNameLength = 200

// Recipe is the single resource served by the gateway.
type Recipe struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateRecipeInput carries the fields accepted by Create.
type CreateRecipeInput struct {
	Name string `json:"name"`
}

// UpdateRecipeInput carries the fields accepted by Update. A nil Name leaves
// the stored name unchanged.
type UpdateRecipeInput struct {
	ID   string  `json:"id"`
	Name *string `json:"name,omitempty"`
}

// ListInput bounds List. Limit 0 returns every record.
type ListInput struct {
	Limit int `json:"limit"`
}

// Validate checks the input before any storage call.
func (in CreateRecipeInput) Validate() error {
	return validateName(in.Name)
}

func (in UpdateRecipeInput) Validate() error {
	if strings.TrimSpace(in.ID) == "" {
		return newValidationError("id", "is required")
	}
	if in.Name != nil {
		return validateName(*in.Name)
	}
	return nil
}

func (in ListInput) Validate() error {
	if in.Limit < 0 {
		return newValidationError("limit", "must not be negative")
	}
	return nil
}

func validateName(name string) error {
	if !utf8.ValidString(name) {
		return newValidationError("name", "must be valid UTF-8")
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return newValidationError("name", "is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return newValidationError("name", "must be at most 200 characters")
	}
	return nil
}

// document is the JSON body stored for each recipe.
type document struct {
	Name string `json:"name"`
}

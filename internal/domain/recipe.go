// Package domain defines the core types and interfaces for the chefcam
// assistant. All other packages depend on domain; domain depends on nothing.
package domain

import (
	"fmt"
	"strings"
)

// Recipe represents a fully generated recipe. A recipe starts life as a
// "shell" (name only, empty lists) the instant generation begins, so the
// UI has a stable identity to render a loading state against, and is
// replaced wholesale when the real result arrives.
type Recipe struct {
	Name         string   `json:"name"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Nutrition    string   `json:"nutrition,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	ImageHint    string   `json:"imageHint,omitempty"`
}

// NewShellRecipe creates a placeholder recipe carrying only the name.
func NewShellRecipe(name string) *Recipe {
	return &Recipe{
		Name:         name,
		Ingredients:  []string{},
		Instructions: []string{},
	}
}

// Clone returns an independent deep copy of the recipe.
func (r *Recipe) Clone() *Recipe {
	if r == nil {
		return nil
	}
	out := *r
	out.Ingredients = append([]string(nil), r.Ingredients...)
	out.Instructions = append([]string(nil), r.Instructions...)
	return &out
}

// IsShell reports whether the recipe is still a loading placeholder.
func (r *Recipe) IsShell() bool {
	return len(r.Ingredients) == 0 && len(r.Instructions) == 0
}

// ImageHintFor derives a stable hint from the first two words of a
// recipe name, lowercased. Used as alt-text seed for generated images.
func ImageHintFor(name string) string {
	words := strings.Fields(strings.ToLower(name))
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}

// Flatten renders the recipe as a plain-text reading script: name,
// ingredients, then numbered instructions. This is what the read-aloud
// feature speaks.
func (r *Recipe) Flatten() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.\n", r.Name)

	if len(r.Ingredients) > 0 {
		b.WriteString("Ingredients: ")
		b.WriteString(strings.Join(r.Ingredients, ", "))
		b.WriteString(".\n")
	}

	for i, step := range r.Instructions {
		fmt.Fprintf(&b, "Step %d. %s\n", i+1, step)
	}

	if r.Nutrition != "" {
		fmt.Fprintf(&b, "Nutrition: %s\n", r.Nutrition)
	}
	return b.String()
}

// Suggestion is one entry of a suggestion batch. Name and Description
// come from a single suggestion call; ImageURL and ImageLoading are
// mutated independently per item as best-effort enrichment settles.
type Suggestion struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ImageLoading bool   `json:"imageLoading"`
}

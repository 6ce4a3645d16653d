package gemini

import (
	"fmt"
	"strings"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// Prompts live here so personality changes are a single-file edit.
// Keep them concise — every token costs money and latency.

// promptDetect is sent with a captured camera frame.
const promptDetect = `You are an expert at identifying food items from photos.
Look at the image and list every distinct food ingredient you can see.

Rules:
- Return ingredient names only, e.g. "tomato", "chicken breast", "basil".
- Use singular, lowercase names.
- Do not include cookware, packaging, or non-food items.
- If no food is visible, return an empty list.`

// promptChef is the system instruction for the "ask the chef" feature.
const promptChef = `You are a friendly, expert chef answering questions about a specific recipe.

Rules:
- Answer in 1-4 sentences. Be direct and practical.
- Only answer based on the recipe context provided.
- The only markdown you may use is **bold** for emphasis. No headings, no lists, no links.
- If the question is unrelated to cooking, say so briefly and redirect.`

// buildSuggestPrompt asks for 5-10 suggestions matching the ingredients.
func buildSuggestPrompt(ingredients []string, dietary, cuisine string) string {
	var b strings.Builder
	b.WriteString("Suggest between 5 and 10 recipes that can be cooked primarily with these ingredients:\n")
	fmt.Fprintf(&b, "%s\n", strings.Join(ingredients, ", "))
	if dietary != "" {
		fmt.Fprintf(&b, "Dietary restrictions: %s\n", dietary)
	}
	if cuisine != "" {
		fmt.Fprintf(&b, "Preferred cuisine: %s\n", cuisine)
	}
	b.WriteString("For each recipe give a name and a one-sentence appetizing description.")
	return b.String()
}

// buildRecipePrompt asks for the full recipe for a chosen dish.
func buildRecipePrompt(name string, ingredients []string, dietary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a complete recipe for %q.\n", name)
	fmt.Fprintf(&b, "The cook has these ingredients available: %s\n", strings.Join(ingredients, ", "))
	if dietary != "" {
		fmt.Fprintf(&b, "Respect these dietary restrictions: %s\n", dietary)
	}
	b.WriteString("Give a full ingredient list with quantities, step-by-step instructions, ")
	b.WriteString("and a one-line nutrition estimate per serving.")
	return b.String()
}

// buildImagePrompt asks for a photo of the finished dish.
func buildImagePrompt(recipeName string) string {
	return fmt.Sprintf(
		"A professional food photograph of %s, plated beautifully, natural lighting, shallow depth of field.",
		recipeName)
}

// buildChefQuestion packs the recipe context and the user's question
// into a single user turn.
func buildChefQuestion(recipe *domain.Recipe, question string) string {
	var b strings.Builder
	if recipe != nil {
		b.WriteString("[Recipe Context]\n")
		fmt.Fprintf(&b, "Recipe: %s\n", recipe.Name)
		if len(recipe.Ingredients) > 0 {
			b.WriteString("Ingredients:\n")
			for _, ing := range recipe.Ingredients {
				fmt.Fprintf(&b, "- %s\n", ing)
			}
		}
		if len(recipe.Instructions) > 0 {
			b.WriteString("Instructions:\n")
			for i, step := range recipe.Instructions {
				fmt.Fprintf(&b, "%d. %s\n", i+1, step)
			}
		}
		if recipe.Nutrition != "" {
			fmt.Fprintf(&b, "Nutrition: %s\n", recipe.Nutrition)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

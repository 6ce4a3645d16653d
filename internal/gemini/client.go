// Package gemini implements the Generation Client: typed request/response
// functions for each AI capability, backed by the Gemini API. Each call is
// a single request producing a single structured response; there is no
// retry logic here — the orchestrator decides what a failure means.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// Compile-time interface check.
var _ domain.Generator = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithTextModel overrides the default text model.
func WithTextModel(model string) Option {
	return func(c *Client) { c.textModel = model }
}

// WithVisionModel overrides the default vision model.
func WithVisionModel(model string) Option {
	return func(c *Client) { c.visionModel = model }
}

// WithImageModel overrides the default image-generation model.
func WithImageModel(model string) Option {
	return func(c *Client) { c.imageModel = model }
}

// Client talks to the Gemini API. It implements domain.Generator.
type Client struct {
	gc          *genai.Client
	textModel   string
	visionModel string
	imageModel  string
	log         zerolog.Logger
}

// NewClient creates a Gemini-backed generation client.
func NewClient(ctx context.Context, apiKey string, log zerolog.Logger, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	c := &Client{
		gc:          gc,
		textModel:   "gemini-2.5-flash",
		visionModel: "gemini-2.5-flash",
		imageModel:  "gemini-2.0-flash-preview-image-generation",
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ── detect food ──────────────────────────────────────────────────

type detectResult struct {
	Ingredients []string `json:"ingredients"`
}

var detectSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"ingredients": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"ingredients"},
}

// DetectFood analyzes a captured frame and returns detected ingredient names.
func (c *Client) DetectFood(ctx context.Context, imageDataURI string) ([]string, error) {
	mime, data, err := parseDataURI(imageDataURI)
	if err != nil {
		return nil, &domain.GenerationError{Op: "detect_food", Err: err}
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(promptDetect),
		genai.NewPartFromBytes(data, mime),
	}, genai.RoleUser)}

	resp, err := c.gc.Models.GenerateContent(ctx, c.visionModel, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   detectSchema,
	})
	if err != nil {
		return nil, &domain.GenerationError{Op: "detect_food", Err: err}
	}

	var out detectResult
	if err := decodeJSON(resp.Text(), &out); err != nil {
		return nil, &domain.GenerationError{Op: "detect_food", Err: err}
	}

	c.log.Debug().Int("count", len(out.Ingredients)).Msg("gemini: detected ingredients")
	return out.Ingredients, nil
}

// ── suggest recipes ──────────────────────────────────────────────

type suggestResult struct {
	Recipes []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"recipes"`
}

var suggestSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"recipes": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":        {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
				},
				Required: []string{"name", "description"},
			},
		},
	},
	Required: []string{"recipes"},
}

// SuggestRecipes returns name/description pairs for the given ingredients.
func (c *Client) SuggestRecipes(ctx context.Context, ingredients []string, dietary, cuisine string) ([]domain.Suggestion, error) {
	prompt := buildSuggestPrompt(ingredients, dietary, cuisine)

	resp, err := c.gc.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   suggestSchema,
	})
	if err != nil {
		return nil, &domain.GenerationError{Op: "suggest_recipes", Err: err}
	}

	var out suggestResult
	if err := decodeJSON(resp.Text(), &out); err != nil {
		return nil, &domain.GenerationError{Op: "suggest_recipes", Err: err}
	}

	suggestions := make([]domain.Suggestion, 0, len(out.Recipes))
	for _, r := range out.Recipes {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		suggestions = append(suggestions, domain.Suggestion{
			Name:        r.Name,
			Description: r.Description,
		})
	}

	c.log.Debug().Int("count", len(suggestions)).Msg("gemini: suggestions")
	return suggestions, nil
}

// ── generate recipe ──────────────────────────────────────────────

type recipeResult struct {
	Name         string   `json:"name"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Nutrition    string   `json:"nutrition"`
}

var recipeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":         {Type: genai.TypeString},
		"ingredients":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"instructions": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"nutrition":    {Type: genai.TypeString},
	},
	Required: []string{"name", "ingredients", "instructions"},
}

// GenerateRecipe returns a full recipe for the named dish.
func (c *Client) GenerateRecipe(ctx context.Context, name string, ingredients []string, dietary string) (*domain.Recipe, error) {
	prompt := buildRecipePrompt(name, ingredients, dietary)

	resp, err := c.gc.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   recipeSchema,
	})
	if err != nil {
		return nil, &domain.GenerationError{Op: "generate_recipe", Err: err}
	}

	var out recipeResult
	if err := decodeJSON(resp.Text(), &out); err != nil {
		return nil, &domain.GenerationError{Op: "generate_recipe", Err: err}
	}
	if len(out.Instructions) == 0 {
		return nil, &domain.GenerationError{Op: "generate_recipe", Err: fmt.Errorf("empty instructions for %q", name)}
	}

	return &domain.Recipe{
		Name:         out.Name,
		Ingredients:  out.Ingredients,
		Instructions: out.Instructions,
		Nutrition:    out.Nutrition,
	}, nil
}

// ── generate image ───────────────────────────────────────────────

// GenerateImage returns a data-URI image for the dish, or "" when the
// model produced no image part. Absence is not an error.
func (c *Client) GenerateImage(ctx context.Context, recipeName string) (string, error) {
	prompt := buildImagePrompt(recipeName)

	resp, err := c.gc.Models.GenerateContent(ctx, c.imageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return "", &domain.GenerationError{Op: "generate_image", Err: err}
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
			}
		}
	}

	c.log.Debug().Str("recipe", recipeName).Msg("gemini: no image part in response")
	return "", nil
}

// ── ask chef ─────────────────────────────────────────────────────

// AskChef answers a free-form question about the recipe, given prior turns.
func (c *Client) AskChef(ctx context.Context, recipe *domain.Recipe, question string, history []domain.ChatTurn) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(
		buildChefQuestion(recipe, question), genai.RoleUser))

	resp, err := c.gc.Models.GenerateContent(ctx, c.textModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(promptChef, genai.RoleUser),
	})
	if err != nil {
		return "", &domain.GenerationError{Op: "ask_chef", Err: err}
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", &domain.GenerationError{Op: "ask_chef", Err: fmt.Errorf("empty answer")}
	}
	return answer, nil
}

// decodeJSON strips markdown code fences and unmarshals into v.
func decodeJSON(raw string, v any) error {
	raw = stripCodeFence(raw)
	if raw == "" {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

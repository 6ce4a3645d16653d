// Package chat maintains the ordered transcript for the "ask the chef"
// feature. Turns are appended transactionally around each request so
// the dialogue always reads as complete, even after a backend failure.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// FallbackAnswer is appended as the model turn when the backend call
// fails. The failure is absorbed into the transcript, never surfaced as
// a separate error channel.
const FallbackAnswer = "I'm sorry, I'm having a little trouble in the kitchen right now. Please ask me again in a moment."

// RecipeSource supplies the active recipe context for each question.
type RecipeSource func() *domain.Recipe

// Option configures the controller.
type Option func(*Controller)

// WithOnChange registers a hook fired after every transcript mutation.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithOnReset registers a hook fired when the conversation is
// discarded, e.g. to cancel an in-flight dictation.
func WithOnReset(fn func()) Option {
	return func(c *Controller) { c.onReset = fn }
}

// Controller owns one open conversation. It allows at most one
// in-flight question and destroys all turns when its host surface
// closes.
type Controller struct {
	gen      domain.Generator
	recipe   RecipeSource
	log      zerolog.Logger
	onChange func()
	onReset  func()

	mu       sync.Mutex
	turns    []domain.ChatTurn
	inFlight bool
}

// New creates a conversation controller.
func New(gen domain.Generator, recipe RecipeSource, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{gen: gen, recipe: recipe, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Turns returns a copy of the transcript.
func (c *Controller) Turns() []domain.ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// InFlight reports whether a question is currently being answered.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Ask appends the question as a user turn, asks the chef, and appends
// the answer (or the fallback apology) as a model turn. Empty questions
// and concurrent asks are rejected before any network call.
func (c *Controller) Ask(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return domain.ErrAskInFlight
	}
	c.inFlight = true
	history := make([]domain.ChatTurn, len(c.turns))
	copy(history, c.turns)
	c.turns = append(c.turns, domain.ChatTurn{Role: domain.RoleUser, Content: question})
	c.mu.Unlock()
	c.changed()

	answer, err := c.gen.AskChef(ctx, c.recipe(), question, history)
	if err != nil {
		// Absorbed: the transcript stays self-consistent.
		c.log.Warn().Err(err).Msg("chat: ask failed, appending fallback")
		answer = FallbackAnswer
	}

	c.mu.Lock()
	c.turns = append(c.turns, domain.ChatTurn{Role: domain.RoleModel, Content: answer})
	c.inFlight = false
	c.mu.Unlock()
	c.changed()
	return nil
}

// Reset discards all turns. Called when the conversation's host surface
// closes; also cancels any in-flight dictation via the reset hook.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.turns = nil
	c.mu.Unlock()

	if c.onReset != nil {
		c.onReset()
	}
	c.changed()
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

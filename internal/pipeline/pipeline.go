// Package pipeline implements the core generation state machine: it
// sequences the detect, suggest, and generate stages, merges partial
// results, and guarantees at most one in-flight stage at a time.
//
// Fatal failures (the primary text calls) abort the stage and revert
// state; best-effort failures (image enrichment) are absorbed per item.
// Late results from an aborted or superseded stage are discarded by
// sequence and batch checks rather than by cancelling the underlying
// network call.
package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// FrameSource supplies freshly captured camera frames for detection.
type FrameSource interface {
	CaptureFrame(ctx context.Context) (string, error)
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the sink for transient user-facing notices.
func WithNotifier(n domain.Notifier) Option {
	return func(o *Orchestrator) { o.notify = n }
}

// WithOnRecipeChange registers a hook invoked whenever the active
// recipe is replaced or cleared. Used to cancel an in-progress
// read-aloud so stale audio never continues after navigation.
func WithOnRecipeChange(fn func()) Option {
	return func(o *Orchestrator) { o.onRecipeChange = fn }
}

// Orchestrator owns the pipeline state. All mutations happen under a
// single mutex and bump a monotonic version, so subscribers always see
// a coherent snapshot of which stage is in flight and what data exists.
type Orchestrator struct {
	gen            domain.Generator
	frames         FrameSource
	notify         domain.Notifier
	onRecipeChange func()
	log            zerolog.Logger

	mu          sync.Mutex
	stage       domain.Stage
	ingredients *domain.IngredientSet
	dietary     string
	cuisine     string
	suggestions []domain.Suggestion
	batchID     uuid.UUID // owns suggestion image writes
	recipe      *domain.Recipe
	genSeq      uint64 // owns generate-stage writes
	version     uint64
	subs        map[uint64]chan struct{}
	nextSub     uint64
}

// New creates an orchestrator with the given generation client and
// frame source.
func New(gen domain.Generator, frames FrameSource, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:         gen,
		frames:      frames,
		log:         log,
		ingredients: domain.NewIngredientSet(),
		subs:        make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Snapshot is a race-free copy of the pipeline state at one version.
type Snapshot struct {
	Stage           string              `json:"stage"`
	Ingredients     []string            `json:"ingredients"`
	IngredientsText string              `json:"ingredientsText"`
	Dietary         string              `json:"dietary,omitempty"`
	Cuisine         string              `json:"cuisine,omitempty"`
	Suggestions     []domain.Suggestion `json:"suggestions"`
	Recipe          *domain.Recipe      `json:"recipe,omitempty"`
	Version         uint64              `json:"version"`
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	suggestions := make([]domain.Suggestion, len(o.suggestions))
	copy(suggestions, o.suggestions)

	return Snapshot{
		Stage:           o.stage.String(),
		Ingredients:     o.ingredients.Names(),
		IngredientsText: o.ingredients.String(),
		Dietary:         o.dietary,
		Cuisine:         o.cuisine,
		Suggestions:     suggestions,
		Recipe:          o.recipe.Clone(),
		Version:         o.version,
	}
}

// Stage returns the currently active pipeline stage.
func (o *Orchestrator) Stage() domain.Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// ActiveRecipe returns a copy of the active recipe, or nil.
func (o *Orchestrator) ActiveRecipe() *domain.Recipe {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recipe.Clone()
}

// Subscribe registers for change signals. The returned channel receives
// a (coalesced) signal after every state mutation; call the cancel
// function to unsubscribe.
func (o *Orchestrator) Subscribe() (<-chan struct{}, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan struct{}, 1)
	o.subs[id] = ch

	return ch, func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Touch bumps the version and signals subscribers without changing
// pipeline data. Adapters outside the orchestrator (camera, speech,
// chat) call it so the UI re-reads the combined state.
func (o *Orchestrator) Touch() {
	o.mu.Lock()
	o.bumpLocked()
	o.mu.Unlock()
}

// SetIngredients replaces the ingredient set from its comma-joined
// editing form.
func (o *Orchestrator) SetIngredients(raw string) {
	o.mu.Lock()
	o.ingredients = domain.ParseIngredients(raw)
	o.bumpLocked()
	o.mu.Unlock()
}

// SetPreferences stores dietary and cuisine preferences used by the
// suggest and generate stages.
func (o *Orchestrator) SetPreferences(dietary, cuisine string) {
	o.mu.Lock()
	o.dietary = dietary
	o.cuisine = cuisine
	o.bumpLocked()
	o.mu.Unlock()
}

// ── detecting ────────────────────────────────────────────────────

// Detect captures a frame, runs food detection, and merges the result
// into the ingredient set. Any failure aborts the stage with a notice
// and no state mutation.
func (o *Orchestrator) Detect(ctx context.Context) error {
	if err := o.begin(domain.StageDetecting); err != nil {
		return err
	}
	defer o.finish()
	return o.detect(ctx, "")
}

// DetectFrame runs detection on a frame supplied by the caller (the
// browser captures it client-side) instead of the local frame source.
func (o *Orchestrator) DetectFrame(ctx context.Context, frame string) error {
	if strings.TrimSpace(frame) == "" {
		return o.Detect(ctx)
	}
	if err := o.begin(domain.StageDetecting); err != nil {
		return err
	}
	defer o.finish()
	return o.detect(ctx, frame)
}

func (o *Orchestrator) detect(ctx context.Context, frame string) error {
	if frame == "" {
		var err error
		frame, err = o.frames.CaptureFrame(ctx)
		if err != nil {
			o.notice("Could not capture a frame. Is the camera on?")
			return err
		}
	}

	names, err := o.gen.DetectFood(ctx, frame)
	if err != nil {
		o.log.Error().Err(err).Msg("pipeline: food detection failed")
		o.notice("Food detection failed. Please try again.")
		return err
	}

	o.mu.Lock()
	added := o.ingredients.Add(names...)
	o.bumpLocked()
	o.mu.Unlock()

	o.log.Info().Int("detected", len(names)).Int("added", added).Msg("pipeline: ingredients merged")
	if added == 0 {
		o.notice("No new ingredients detected.")
	}
	return nil
}

// ── suggesting ───────────────────────────────────────────────────

// Suggest fetches recipe suggestions for the current ingredient set,
// then enriches each suggestion with a best-effort image. Starting a
// new pass invalidates the previous suggestions and the active recipe.
func (o *Orchestrator) Suggest(ctx context.Context) error {
	o.mu.Lock()
	if o.ingredients.Len() == 0 {
		o.mu.Unlock()
		o.notice("Add some ingredients first.")
		return domain.ErrNoIngredients
	}
	names := o.ingredients.Names()
	dietary, cuisine := o.dietary, o.cuisine
	o.mu.Unlock()

	if err := o.begin(domain.StageSuggesting); err != nil {
		return err
	}

	o.mu.Lock()
	o.clearRecipeLocked()
	o.suggestions = nil
	o.batchID = uuid.New()
	batch := o.batchID
	o.bumpLocked()
	o.mu.Unlock()

	got, err := o.gen.SuggestRecipes(ctx, names, dietary, cuisine)
	if err != nil {
		o.finish()
		o.log.Error().Err(err).Msg("pipeline: suggestion call failed")
		o.notice("Could not fetch recipe suggestions. Please try again.")
		return err
	}
	if len(got) == 0 {
		o.finish()
		o.notice("No recipes found for those ingredients.")
		return nil
	}

	o.mu.Lock()
	o.suggestions = make([]domain.Suggestion, len(got))
	for i, s := range got {
		s.ImageLoading = true
		o.suggestions[i] = s
	}
	o.bumpLocked()
	o.mu.Unlock()
	o.finish()

	// Per-item enrichment. Each goroutine closes over its own fixed
	// index and writes back to that slot only; the batch check discards
	// writes once a newer suggestion pass has started. Detached from
	// the request context so a closed HTTP request does not kill them.
	bg := context.WithoutCancel(ctx)
	for i := range got {
		go o.enrich(bg, batch, i, got[i].Name)
	}
	return nil
}

// enrich fetches one suggestion image and writes it back by index.
// A failure only clears that item's loading flag.
func (o *Orchestrator) enrich(ctx context.Context, batch uuid.UUID, idx int, name string) {
	url, err := o.gen.GenerateImage(ctx, name)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.batchID != batch || idx >= len(o.suggestions) {
		o.log.Debug().Str("recipe", name).Msg("pipeline: discarding stale suggestion image")
		return
	}

	s := &o.suggestions[idx]
	s.ImageLoading = false
	if err != nil {
		o.log.Warn().Err(err).Str("recipe", name).Msg("pipeline: suggestion image failed")
	} else {
		s.ImageURL = url
	}
	o.bumpLocked()
}

// ── generating ───────────────────────────────────────────────────

// Generate produces the full recipe for the named dish. A shell recipe
// is published synchronously so the UI can bind a loading overlay to
// the final object's identity; the text and image calls then run
// concurrently. Text failure is fatal and wins over a late image
// success; image failure is absorbed.
func (o *Orchestrator) Generate(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		o.notice("Pick or type a recipe name first.")
		return domain.ErrNoRecipeName
	}

	o.mu.Lock()
	if o.ingredients.Len() == 0 {
		o.mu.Unlock()
		o.notice("Add some ingredients first.")
		return domain.ErrNoIngredients
	}
	names := o.ingredients.Names()
	dietary := o.dietary
	// Carry over the originating suggestion's image, if any.
	var carried string
	for _, s := range o.suggestions {
		if s.Name == name {
			carried = s.ImageURL
		}
	}
	o.mu.Unlock()

	if err := o.begin(domain.StageGenerating); err != nil {
		return err
	}
	defer o.finish()

	o.mu.Lock()
	o.genSeq++
	seq := o.genSeq
	o.setRecipeLocked(domain.NewShellRecipe(name))
	o.mu.Unlock()

	go o.fetchRecipeImage(context.WithoutCancel(ctx), seq, name)

	rec, err := o.gen.GenerateRecipe(ctx, name, names, dietary)
	if err != nil {
		o.mu.Lock()
		if o.genSeq == seq {
			// Invalidate the sequence so a late image result is
			// discarded instead of reviving a cleared recipe.
			o.genSeq++
			o.setRecipeLocked(nil)
		}
		o.mu.Unlock()
		o.log.Error().Err(err).Str("recipe", name).Msg("pipeline: recipe generation failed")
		o.notice("Could not generate the recipe. Please try again.")
		return err
	}

	o.mu.Lock()
	if o.genSeq == seq {
		rec.Name = name // model output never overrides the requested identity
		rec.ImageHint = domain.ImageHintFor(name)
		if o.recipe != nil && o.recipe.ImageURL != "" {
			rec.ImageURL = o.recipe.ImageURL // image settled first
		} else if carried != "" {
			rec.ImageURL = carried
		}
		o.setRecipeLocked(rec)
	}
	o.mu.Unlock()

	o.log.Info().Str("recipe", name).Msg("pipeline: recipe generated")
	return nil
}

// fetchRecipeImage requests the dish image and attaches it to the
// active recipe if the generation it belongs to is still current.
func (o *Orchestrator) fetchRecipeImage(ctx context.Context, seq uint64, name string) {
	url, err := o.gen.GenerateImage(ctx, name)
	if err != nil {
		// Best-effort: the recipe simply has no image.
		o.log.Warn().Err(err).Str("recipe", name).Msg("pipeline: recipe image failed")
		return
	}
	if url == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// The fatal path wins: never attach an image to a recipe that was
	// cleared or superseded while the image call was in flight.
	if o.genSeq != seq || o.recipe == nil {
		o.log.Debug().Str("recipe", name).Msg("pipeline: discarding stale recipe image")
		return
	}
	o.recipe.ImageURL = url
	o.bumpLocked()
}

// ── stage gating & internals ─────────────────────────────────────

// begin enters a stage. Entry is only permitted from Idle; an in-flight
// stage rejects all triggers without side effects.
func (o *Orchestrator) begin(s domain.Stage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != domain.StageIdle {
		o.log.Debug().Stringer("active", o.stage).Stringer("requested", s).Msg("pipeline: stage busy")
		return domain.ErrStageBusy
	}
	o.stage = s
	o.bumpLocked()
	return nil
}

// finish returns the pipeline to Idle.
func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.stage = domain.StageIdle
	o.bumpLocked()
	o.mu.Unlock()
}

// clearRecipeLocked discards the active recipe and invalidates any
// in-flight generation so its late results are dropped.
func (o *Orchestrator) clearRecipeLocked() {
	o.genSeq++
	o.setRecipeLocked(nil)
}

// setRecipeLocked replaces the active recipe and fires the change hook.
// The hook runs under o.mu and must not call back into the orchestrator.
func (o *Orchestrator) setRecipeLocked(r *domain.Recipe) {
	o.recipe = r
	o.bumpLocked()
	if o.onRecipeChange != nil {
		o.onRecipeChange()
	}
}

// bumpLocked increments the version and signals subscribers. Must be
// called with o.mu held. Signals are coalesced, never blocking.
func (o *Orchestrator) bumpLocked() {
	o.version++
	for _, ch := range o.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// notice surfaces a transient user-facing message. Never called with
// o.mu held — the notifier may call back into Touch.
func (o *Orchestrator) notice(msg string) {
	if o.notify != nil {
		o.notify.Notify(msg)
	}
}

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// stubGen is a scriptable domain.Generator. Behaviors are swappable
// mid-test so one stage can act differently from the next.
type stubGen struct {
	mu      sync.Mutex
	detect  func(frame string) ([]string, error)
	suggest func() ([]domain.Suggestion, error)
	recipe  func(name string) (*domain.Recipe, error)
	image   func(name string) (string, error)
}

func newStubGen() *stubGen {
	return &stubGen{
		detect:  func(string) ([]string, error) { return nil, nil },
		suggest: func() ([]domain.Suggestion, error) { return nil, nil },
		recipe: func(name string) (*domain.Recipe, error) {
			return &domain.Recipe{
				Name:         name,
				Ingredients:  []string{"salt"},
				Instructions: []string{"Cook."},
			}, nil
		},
		image: func(string) (string, error) { return "", nil },
	}
}

func (g *stubGen) setImage(fn func(string) (string, error)) {
	g.mu.Lock()
	g.image = fn
	g.mu.Unlock()
}

func (g *stubGen) setRecipe(fn func(string) (*domain.Recipe, error)) {
	g.mu.Lock()
	g.recipe = fn
	g.mu.Unlock()
}

func (g *stubGen) DetectFood(_ context.Context, frame string) ([]string, error) {
	g.mu.Lock()
	fn := g.detect
	g.mu.Unlock()
	return fn(frame)
}

func (g *stubGen) SuggestRecipes(context.Context, []string, string, string) ([]domain.Suggestion, error) {
	g.mu.Lock()
	fn := g.suggest
	g.mu.Unlock()
	return fn()
}

func (g *stubGen) GenerateRecipe(_ context.Context, name string, _ []string, _ string) (*domain.Recipe, error) {
	g.mu.Lock()
	fn := g.recipe
	g.mu.Unlock()
	return fn(name)
}

func (g *stubGen) GenerateImage(_ context.Context, name string) (string, error) {
	g.mu.Lock()
	fn := g.image
	g.mu.Unlock()
	return fn(name)
}

func (g *stubGen) AskChef(context.Context, *domain.Recipe, string, []domain.ChatTurn) (string, error) {
	return "", nil
}

type stubFrames struct {
	frame string
	err   error
}

func (f *stubFrames) CaptureFrame(context.Context) (string, error) {
	return f.frame, f.err
}

// recorder collects notices thread-safely.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Notify(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func setup(t *testing.T) (*Orchestrator, *stubGen, *recorder) {
	t.Helper()
	gen := newStubGen()
	notes := &recorder{}
	o := New(gen, &stubFrames{frame: "data:image/jpeg;base64,x"}, zerolog.Nop(),
		WithNotifier(notes),
	)
	return o, gen, notes
}

func TestDetectMergesIngredients(t *testing.T) {
	o, gen, notes := setup(t)
	ctx := context.Background()

	o.SetIngredients("tomato")
	gen.detect = func(string) ([]string, error) {
		return []string{"tomato", "onion", "garlic"}, nil
	}

	require.NoError(t, o.Detect(ctx))
	require.Equal(t, []string{"tomato", "onion", "garlic"}, o.Snapshot().Ingredients)
	require.Empty(t, notes.all())

	// A second pass detecting only known ingredients notes that nothing
	// was added but never removes anything.
	gen.detect = func(string) ([]string, error) { return []string{"tomato"}, nil }
	require.NoError(t, o.Detect(ctx))
	require.Equal(t, []string{"tomato", "onion", "garlic"}, o.Snapshot().Ingredients)
	require.Contains(t, notes.all(), "No new ingredients detected.")
}

func TestDetectFatalLeavesStateUntouched(t *testing.T) {
	o, gen, _ := setup(t)

	o.SetIngredients("rice")
	gen.detect = func(string) ([]string, error) {
		return nil, &domain.GenerationError{Op: "detect_food", Err: errors.New("backend down")}
	}

	require.Error(t, o.Detect(context.Background()))
	require.Equal(t, []string{"rice"}, o.Snapshot().Ingredients)
	require.Equal(t, domain.StageIdle, o.Stage())
}

func TestStageGateRejectsConcurrentTriggers(t *testing.T) {
	o, gen, _ := setup(t)
	ctx := context.Background()
	o.SetIngredients("rice")

	release := make(chan struct{})
	gen.suggest = func() ([]domain.Suggestion, error) {
		<-release
		return []domain.Suggestion{{Name: "Fried Rice"}}, nil
	}

	done := make(chan error, 1)
	go func() { done <- o.Suggest(ctx) }()

	require.Eventually(t, func() bool {
		return o.Stage() == domain.StageSuggesting
	}, waitFor, tick)

	// Every trigger is rejected while a stage is in flight.
	require.ErrorIs(t, o.Detect(ctx), domain.ErrStageBusy)
	require.ErrorIs(t, o.Suggest(ctx), domain.ErrStageBusy)
	require.ErrorIs(t, o.Generate(ctx, "Fried Rice"), domain.ErrStageBusy)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, domain.StageIdle, o.Stage())
}

func TestSuggestEmptyResultIsSoftFailure(t *testing.T) {
	o, gen, notes := setup(t)
	o.SetIngredients("rice")
	gen.suggest = func() ([]domain.Suggestion, error) { return nil, nil }

	require.NoError(t, o.Suggest(context.Background()))
	require.Empty(t, o.Snapshot().Suggestions)
	require.Contains(t, notes.all(), "No recipes found for those ingredients.")
	require.Equal(t, domain.StageIdle, o.Stage())
}

func TestSuggestWithoutIngredients(t *testing.T) {
	o, _, notes := setup(t)
	require.ErrorIs(t, o.Suggest(context.Background()), domain.ErrNoIngredients)
	require.Contains(t, notes.all(), "Add some ingredients first.")
}

func TestSuggestEnrichmentIsPerItem(t *testing.T) {
	o, gen, _ := setup(t)
	o.SetIngredients("rice, egg")

	gen.suggest = func() ([]domain.Suggestion, error) {
		return []domain.Suggestion{{Name: "Fried Rice"}, {Name: "Omelette"}}, nil
	}
	gen.setImage(func(name string) (string, error) {
		if name == "Omelette" {
			return "", &domain.GenerationError{Op: "generate_image", Err: errors.New("quota")}
		}
		return "data:image/png;base64,img", nil
	})

	require.NoError(t, o.Suggest(context.Background()))

	// Both items settle independently: one with an image, one without,
	// and neither failure disturbs the other.
	require.Eventually(t, func() bool {
		s := o.Snapshot().Suggestions
		return len(s) == 2 && !s[0].ImageLoading && !s[1].ImageLoading
	}, waitFor, tick)

	s := o.Snapshot().Suggestions
	require.Equal(t, "data:image/png;base64,img", s[0].ImageURL)
	require.Empty(t, s[1].ImageURL)
}

func TestSuggestStaleBatchImagesDiscarded(t *testing.T) {
	o, gen, _ := setup(t)
	ctx := context.Background()
	o.SetIngredients("rice")

	release := make(chan struct{})
	gen.suggest = func() ([]domain.Suggestion, error) {
		return []domain.Suggestion{{Name: "First Batch"}}, nil
	}
	gen.setImage(func(string) (string, error) {
		<-release
		return "data:image/png;base64,stale", nil
	})

	require.NoError(t, o.Suggest(ctx))

	// Start a second pass before the first batch's image settles.
	gen.suggest = func() ([]domain.Suggestion, error) {
		return []domain.Suggestion{{Name: "Second Batch"}}, nil
	}
	gen.setImage(func(string) (string, error) { return "", nil })
	require.NoError(t, o.Suggest(ctx))

	close(release)

	require.Eventually(t, func() bool {
		s := o.Snapshot().Suggestions
		return len(s) == 1 && !s[0].ImageLoading
	}, waitFor, tick)

	s := o.Snapshot().Suggestions
	require.Equal(t, "Second Batch", s[0].Name)
	require.Empty(t, s[0].ImageURL, "stale batch image must never land on the new batch")
}

func TestGenerateValidation(t *testing.T) {
	o, _, _ := setup(t)
	ctx := context.Background()

	require.ErrorIs(t, o.Generate(ctx, "  "), domain.ErrNoRecipeName)
	require.ErrorIs(t, o.Generate(ctx, "Paella"), domain.ErrNoIngredients)
}

func TestGeneratePublishesShellThenReplaces(t *testing.T) {
	o, gen, _ := setup(t)
	o.SetIngredients("rice, saffron")

	release := make(chan struct{})
	gen.setRecipe(func(string) (*domain.Recipe, error) {
		<-release
		// The model renames the dish; the requested identity must win.
		return &domain.Recipe{
			Name:         "Arroz Con Cosas",
			Ingredients:  []string{"rice", "saffron"},
			Instructions: []string{"Toast the rice.", "Add stock."},
		}, nil
	})

	done := make(chan error, 1)
	go func() { done <- o.Generate(context.Background(), "Seafood Paella") }()

	require.Eventually(t, func() bool {
		r := o.ActiveRecipe()
		return r != nil && r.IsShell() && r.Name == "Seafood Paella"
	}, waitFor, tick, "shell recipe must be visible while generating")

	close(release)
	require.NoError(t, <-done)

	r := o.ActiveRecipe()
	require.NotNil(t, r)
	require.False(t, r.IsShell())
	require.Equal(t, "Seafood Paella", r.Name)
	require.Equal(t, "seafood paella", r.ImageHint)
}

func TestGenerateFatalWinsOverLateImage(t *testing.T) {
	o, gen, notes := setup(t)
	o.SetIngredients("rice")

	imgRelease := make(chan struct{})
	gen.setImage(func(string) (string, error) {
		<-imgRelease
		return "data:image/png;base64,late", nil
	})
	gen.setRecipe(func(string) (*domain.Recipe, error) {
		return nil, &domain.GenerationError{Op: "generate_recipe", Err: errors.New("backend down")}
	})

	require.Error(t, o.Generate(context.Background(), "Paella"))
	require.Nil(t, o.ActiveRecipe())
	require.Contains(t, notes.all(), "Could not generate the recipe. Please try again.")

	// The image settles after the failure: it must not revive the
	// cleared recipe.
	close(imgRelease)
	require.Never(t, func() bool {
		return o.ActiveRecipe() != nil
	}, 100*time.Millisecond, tick)
}

func TestGenerateAttachesEarlyImage(t *testing.T) {
	o, gen, _ := setup(t)
	o.SetIngredients("rice")

	imgDone := make(chan struct{})
	gen.setImage(func(string) (string, error) {
		defer close(imgDone)
		return "data:image/png;base64,early", nil
	})
	gen.setRecipe(func(name string) (*domain.Recipe, error) {
		<-imgDone // image settles before the text result
		return &domain.Recipe{Name: name, Ingredients: []string{"rice"}, Instructions: []string{"Cook."}}, nil
	})

	require.NoError(t, o.Generate(context.Background(), "Paella"))

	require.Eventually(t, func() bool {
		r := o.ActiveRecipe()
		return r != nil && r.ImageURL == "data:image/png;base64,early"
	}, waitFor, tick)
}

func TestGenerateCarriesSuggestionImage(t *testing.T) {
	o, gen, _ := setup(t)
	o.SetIngredients("rice")

	gen.suggest = func() ([]domain.Suggestion, error) {
		return []domain.Suggestion{{Name: "Paella"}}, nil
	}
	gen.setImage(func(string) (string, error) { return "data:image/png;base64,sugg", nil })
	require.NoError(t, o.Suggest(context.Background()))
	require.Eventually(t, func() bool {
		s := o.Snapshot().Suggestions
		return len(s) == 1 && s[0].ImageURL != ""
	}, waitFor, tick)

	// The dedicated image call produces nothing; the suggestion tile's
	// image carries over so the detail view is never blank.
	gen.setImage(func(string) (string, error) { return "", nil })
	require.NoError(t, o.Generate(context.Background(), "Paella"))

	r := o.ActiveRecipe()
	require.NotNil(t, r)
	require.Equal(t, "data:image/png;base64,sugg", r.ImageURL)
}

func TestSuggestClearsActiveRecipe(t *testing.T) {
	o, gen, _ := setup(t)
	o.SetIngredients("rice")

	require.NoError(t, o.Generate(context.Background(), "Paella"))
	require.NotNil(t, o.ActiveRecipe())

	gen.suggest = func() ([]domain.Suggestion, error) {
		return []domain.Suggestion{{Name: "Risotto"}}, nil
	}
	require.NoError(t, o.Suggest(context.Background()))
	require.Nil(t, o.ActiveRecipe(), "a new suggestion pass invalidates the open recipe")
}

func TestSubscribeSignalsOnMutation(t *testing.T) {
	o, _, _ := setup(t)

	ch, cancel := o.Subscribe()
	defer cancel()

	before := o.Snapshot().Version
	o.SetIngredients("rice")

	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatal("no signal after mutation")
	}
	require.Greater(t, o.Snapshot().Version, before)
}

func TestRecipeChangeHookFires(t *testing.T) {
	gen := newStubGen()
	var mu sync.Mutex
	fired := 0
	o := New(gen, &stubFrames{frame: "f"}, zerolog.Nop(),
		WithOnRecipeChange(func() { mu.Lock(); fired++; mu.Unlock() }),
	)
	o.SetIngredients("rice")

	require.NoError(t, o.Generate(context.Background(), "Paella"))
	mu.Lock()
	n := fired
	mu.Unlock()
	// Once for the shell, once for the full recipe.
	require.GreaterOrEqual(t, n, 2)
}

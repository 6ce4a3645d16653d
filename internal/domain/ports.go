package domain

import "context"

// Generator is the boundary to the AI model backend. Each operation is
// a single request producing a single structured response; failures are
// wrapped in *GenerationError. Implementations do no retrying of their
// own.
type Generator interface {
	// DetectFood analyzes a JPEG data-URI frame and returns the names
	// of detected ingredients.
	DetectFood(ctx context.Context, imageDataURI string) ([]string, error)

	// SuggestRecipes returns 5-10 name/description pairs for the given
	// ingredients and optional dietary/cuisine preferences.
	SuggestRecipes(ctx context.Context, ingredients []string, dietary, cuisine string) ([]Suggestion, error)

	// GenerateRecipe returns a full recipe for the named dish. Callers
	// overwrite the returned name with the requested one to guarantee
	// identity consistency.
	GenerateRecipe(ctx context.Context, name string, ingredients []string, dietary string) (*Recipe, error)

	// GenerateImage returns a data-URI image for the dish, or "" when
	// the model produced none. Absence is not an error.
	GenerateImage(ctx context.Context, recipeName string) (string, error)

	// AskChef answers a free-form question about the recipe, given the
	// prior conversation turns.
	AskChef(ctx context.Context, recipe *Recipe, question string, history []ChatTurn) (string, error)
}

// DeviceProvider is the boundary to platform media capture. The camera
// adapter layers selection policy and lifecycle on top of it.
type DeviceProvider interface {
	// EnumerateVideoInputs lists the available video input devices.
	EnumerateVideoInputs(ctx context.Context) ([]Device, error)

	// AcquireStream opens a capture stream bound to the given device.
	AcquireStream(ctx context.Context, deviceID string) (StreamHandle, error)
}

// StreamHandle is one open capture stream. Release must be called on
// every exit path; the underlying hardware is held by the OS until then.
type StreamHandle interface {
	// Ready reports whether the stream is producing decodable frames.
	Ready() bool

	// CaptureFrame draws the current frame to an offscreen raster and
	// returns it as a JPEG data URI.
	CaptureFrame(ctx context.Context) (string, error)

	// Release stops all tracks and frees the device.
	Release() error
}

// Synthesizer converts text to WAV audio for the read-aloud feature.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Notifier surfaces transient user-facing notices. Implementations can
// write to a log, a console, or push toward the UI.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// Notify calls the underlying function.
func (f NotifierFunc) Notify(message string) { f(message) }

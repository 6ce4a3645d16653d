package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers.
var (
	ErrStageBusy        = errors.New("another stage is already in flight")
	ErrNoIngredients    = errors.New("ingredient list is empty")
	ErrNoRecipeName     = errors.New("recipe name is empty")
	ErrNoRecipe         = errors.New("no active recipe")
	ErrCameraOff        = errors.New("camera is off")
	ErrFrameNotReady    = errors.New("video frames are not ready yet")
	ErrNoDevices        = errors.New("no video input devices found")
	ErrSingleDevice     = errors.New("only one camera available")
	ErrUnsupported      = errors.New("capability not supported on this platform")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrAskInFlight      = errors.New("a question is already in flight")
)

// GenerationError wraps a failed model call with the operation name.
// The Generation Client never retries; callers decide whether a failure
// is fatal to the current stage or absorbed as best-effort.
type GenerationError struct {
	Op  string // "detect_food", "suggest_recipes", ...
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

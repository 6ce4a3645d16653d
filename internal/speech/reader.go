package speech

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// Sink is the playback backend the Reader drives. *Player satisfies it;
// tests substitute a stub.
type Sink interface {
	Play(wav []byte, done func(stopped bool)) error
	Pause()
	Resume()
	Stop()
}

// Compile-time interface check.
var _ Sink = (*Player)(nil)

// ReaderOption configures the Reader.
type ReaderOption func(*Reader)

// WithOnStateChange registers a hook fired on every state transition.
func WithOnStateChange(fn func()) ReaderOption {
	return func(r *Reader) { r.onChange = fn }
}

// Reader is the read-aloud state machine:
//
//	idle -> speaking -> {paused <-> speaking} -> idle
//
// At most one utterance is ever live; Speak cancels any previous one.
// Natural completion or a playback error returns to idle and releases
// the utterance handle.
type Reader struct {
	synth    domain.Synthesizer
	sink     Sink
	log      zerolog.Logger
	onChange func()

	mu        sync.Mutex
	state     domain.SpeechState
	utterance uint64 // identifies the live utterance
}

// NewReader creates a read-aloud controller.
func NewReader(synth domain.Synthesizer, sink Sink, log zerolog.Logger, opts ...ReaderOption) *Reader {
	r := &Reader{synth: synth, sink: sink, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supported reports whether read-aloud is available. It is false when
// the process has no synthesizer credentials or no audio output.
func (r *Reader) Supported() bool {
	return r.synth != nil && r.sink != nil
}

// State returns the current speech state.
func (r *Reader) State() domain.SpeechState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ReadRecipe speaks a flattened rendition of the recipe: name,
// ingredients, numbered instructions.
func (r *Reader) ReadRecipe(ctx context.Context, recipe *domain.Recipe) error {
	if recipe == nil {
		return domain.ErrNoRecipe
	}
	return r.Speak(ctx, recipe.Flatten())
}

// Speak cancels any live utterance, synthesizes the text, and starts
// playback. Returns after playback has started; completion transitions
// the state back to idle asynchronously.
func (r *Reader) Speak(ctx context.Context, text string) error {
	if !r.Supported() {
		return domain.ErrUnsupported
	}
	r.mu.Lock()
	r.utterance++
	id := r.utterance
	// The utterance is live from this point, not from when the audio
	// arrives; the UI must not show idle while synthesis is pending.
	r.state = domain.SpeechSpeaking
	r.mu.Unlock()
	r.sink.Stop() // at-most-one live utterance, globally
	r.changed()

	wav, err := r.synth.Synthesize(ctx, text)
	if err != nil {
		r.utteranceDone(id)
		return fmt.Errorf("synthesizing speech: %w", err)
	}

	r.mu.Lock()
	if r.utterance != id {
		// Superseded while synthesizing; drop this utterance.
		r.mu.Unlock()
		return nil
	}
	paused := r.state == domain.SpeechPaused
	r.mu.Unlock()

	if err := r.sink.Play(wav, func(bool) { r.utteranceDone(id) }); err != nil {
		r.utteranceDone(id)
		return fmt.Errorf("starting playback: %w", err)
	}
	if paused {
		// A pause issued while synthesis was in flight applies to the
		// playback that is only starting now.
		r.sink.Pause()
	}
	return nil
}

// Pause suspends the live utterance.
func (r *Reader) Pause() {
	r.mu.Lock()
	if r.state != domain.SpeechSpeaking {
		r.mu.Unlock()
		return
	}
	r.state = domain.SpeechPaused
	r.mu.Unlock()
	r.sink.Pause()
	r.changed()
}

// Resume continues a paused utterance.
func (r *Reader) Resume() {
	r.mu.Lock()
	if r.state != domain.SpeechPaused {
		r.mu.Unlock()
		return
	}
	r.state = domain.SpeechSpeaking
	r.mu.Unlock()
	r.sink.Resume()
	r.changed()
}

// Stop cancels the live utterance and returns to idle. Called on user
// request and whenever the active recipe changes — stale audio must
// never continue after navigation.
func (r *Reader) Stop() {
	if r.sink == nil {
		return
	}
	r.mu.Lock()
	r.utterance++
	stale := r.state != domain.SpeechIdle
	r.state = domain.SpeechIdle
	r.mu.Unlock()

	r.sink.Stop()
	if stale {
		r.log.Debug().Msg("reader: utterance cancelled")
		r.changed()
	}
}

// utteranceDone handles playback completion for the identified
// utterance. Late completions of superseded utterances are ignored.
func (r *Reader) utteranceDone(id uint64) {
	r.mu.Lock()
	if r.utterance != id {
		r.mu.Unlock()
		return
	}
	r.state = domain.SpeechIdle
	r.mu.Unlock()
	r.changed()
}

func (r *Reader) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

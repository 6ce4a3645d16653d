package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// resultSink collects dictation callbacks thread-safely.
type resultSink struct {
	mu      sync.Mutex
	results []string
	errs    []error
}

func (s *resultSink) onResult(text string) {
	s.mu.Lock()
	s.results = append(s.results, text)
	s.mu.Unlock()
}

func (s *resultSink) onError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *resultSink) snapshot() ([]string, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.results...), append([]error(nil), s.errs...)
}

// newSupportedDictation builds a dictation whose platform probe passes:
// "sh" is always on PATH and the model is a temp file. The actual
// recorder is swapped for a test double.
func newSupportedDictation(t *testing.T, sink *resultSink) *Dictation {
	t.Helper()
	model := filepath.Join(t.TempDir(), "model.bin")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := NewDictation("sh", model, sink.onResult, sink.onError, zerolog.Nop())
	if !d.Supported() {
		t.Fatal("probe should pass with an existing binary and model")
	}
	return d
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDictationUnsupportedPlatform(t *testing.T) {
	sink := &resultSink{}
	d := NewDictation("definitely-not-a-real-binary", "/nonexistent/model.bin",
		sink.onResult, sink.onError, zerolog.Nop())

	if d.Supported() {
		t.Fatal("probe should fail")
	}
	if err := d.Start(context.Background()); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	_, errs := sink.snapshot()
	if len(errs) != 1 || !errors.Is(errs[0], domain.ErrUnsupported) {
		t.Fatalf("errs = %v", errs)
	}
}

func TestDictationSingleShotResult(t *testing.T) {
	sink := &resultSink{}
	d := newSupportedDictation(t, sink)
	d.record = func(context.Context, time.Duration) (string, error) {
		return "how long do I knead the dough", nil
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, func() bool {
		results, _ := sink.snapshot()
		return len(results) == 1
	}, "no result delivered")

	results, errs := sink.snapshot()
	if results[0] != "how long do I knead the dough" {
		t.Fatalf("result = %q", results[0])
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if d.Recording() {
		t.Fatal("recording flag not cleared")
	}
}

func TestDictationToggleStopsCurrentTake(t *testing.T) {
	sink := &resultSink{}
	d := newSupportedDictation(t, sink)
	d.record = func(ctx context.Context, _ time.Duration) (string, error) {
		<-ctx.Done() // captured-so-far is still transcribed
		return "partial utterance", nil
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, d.Recording, "recording never started")

	// Second Start is a toggle: it ends the take, not a second session.
	if err := d.Start(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	waitUntil(t, func() bool {
		results, _ := sink.snapshot()
		return len(results) == 1
	}, "no result after toggle")

	results, _ := sink.snapshot()
	if results[0] != "partial utterance" {
		t.Fatalf("result = %q", results[0])
	}
}

func TestDictationNoSpeech(t *testing.T) {
	sink := &resultSink{}
	d := newSupportedDictation(t, sink)
	d.record = func(context.Context, time.Duration) (string, error) {
		return "[BLANK_AUDIO]", nil
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, func() bool {
		_, errs := sink.snapshot()
		return len(errs) == 1
	}, "no error delivered")

	_, errs := sink.snapshot()
	if !errors.Is(errs[0], domain.ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", errs[0])
	}
}

func TestDictationPermissionClassification(t *testing.T) {
	sink := &resultSink{}
	d := newSupportedDictation(t, sink)
	d.record = func(context.Context, time.Duration) (string, error) {
		return "", errors.New("microphone access denied by user")
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, func() bool {
		_, errs := sink.snapshot()
		return len(errs) == 1
	}, "no error delivered")

	_, errs := sink.snapshot()
	if !errors.Is(errs[0], domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", errs[0])
	}
}

func TestCleanTranscription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", " Add the garlic now. ", "Add the garlic now."},
		{"newlines", "first line\nsecond line", "first line second line"},
		{"blank audio", "[BLANK_AUDIO]", ""},
		{"annotation", "(keyboard clicking) stir the pot", "stir the pot"},
		{"hallucinated filler", "Thanks for watching!", ""},
		{"mixed", "  [silence] chop the onions (sizzling)  ", "chop the onions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanTranscription(tt.in); got != tt.want {
				t.Fatalf("cleanTranscription(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDictationNoticeByFailureClass(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"permission denied", fmt.Errorf("%w: mic blocked", domain.ErrPermissionDenied), "Microphone access was denied. Allow microphone use and try again."},
		{"no speech", domain.ErrNoSpeech, "No speech detected. Please try again."},
		{"wrapped no speech", fmt.Errorf("take discarded: %w", domain.ErrNoSpeech), "No speech detected. Please try again."},
		{"other", errors.New("whisper exited 1"), "Voice input failed. Please type your question."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DictationNotice(tt.err); got != tt.want {
				t.Fatalf("DictationNotice(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z\s]*[\)\]]`)

// DictationOption configures the Dictation adapter.
type DictationOption func(*Dictation)

// WithRecordDuration sets the maximum length of one dictation take.
func WithRecordDuration(d time.Duration) DictationOption {
	return func(e *Dictation) { e.duration = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) DictationOption {
	return func(e *Dictation) { e.tempDir = dir }
}

// Dictation provides single-shot speech-to-text input using a local
// Whisper model. One Start produces at most one recognized utterance
// and then ends; no interim partials are surfaced. Starting while a
// recording is in progress stops it instead (toggle semantics).
type Dictation struct {
	whisperBin string
	modelPath  string
	tempDir    string
	duration   time.Duration
	supported  bool
	log        zerolog.Logger

	onResult func(text string)
	onError  func(err error)

	// record is swapped out in tests.
	record func(ctx context.Context, d time.Duration) (string, error)

	mu        sync.Mutex
	recording bool
	cancel    context.CancelFunc
}

// NewDictation creates a dictation adapter. Platform support is probed
// once here: the whisper binary must be on PATH and the model file must
// exist. On unsupported platforms Start reports ErrUnsupported.
func NewDictation(whisperBin, modelPath string, onResult func(string), onError func(error), log zerolog.Logger, opts ...DictationOption) *Dictation {
	d := &Dictation{
		whisperBin: whisperBin,
		modelPath:  modelPath,
		tempDir:    ".chefcam-stt",
		duration:   6 * time.Second,
		log:        log,
		onResult:   onResult,
		onError:    onError,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.record = d.recordOnce

	_, binErr := exec.LookPath(whisperBin)
	_, modelErr := os.Stat(modelPath)
	d.supported = binErr == nil && modelErr == nil
	if !d.supported {
		log.Info().Str("bin", whisperBin).Str("model", modelPath).Msg("dictation unavailable")
	}
	return d
}

// Supported reports whether dictation works on this platform. Probed
// once at construction, never re-checked per call.
func (d *Dictation) Supported() bool { return d.supported }

// Recording reports whether a take is in progress.
func (d *Dictation) Recording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recording
}

// Start begins a single-shot recording. On an unsupported platform it
// is a no-op that reports ErrUnsupported. When already recording it
// stops the current take instead of starting a second session.
func (d *Dictation) Start(ctx context.Context) error {
	if !d.supported {
		d.fail(domain.ErrUnsupported)
		return domain.ErrUnsupported
	}

	d.mu.Lock()
	if d.recording {
		cancel := d.cancel
		d.mu.Unlock()
		cancel()
		return nil
	}
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.recording = true
	d.cancel = cancel
	d.mu.Unlock()

	go d.run(rctx)
	return nil
}

// Stop ends the current recording, if any. The utterance captured so
// far is still transcribed and surfaced.
func (d *Dictation) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	recording := d.recording
	d.mu.Unlock()
	if recording && cancel != nil {
		cancel()
	}
}

func (d *Dictation) run(ctx context.Context) {
	text, err := d.record(ctx, d.duration)

	d.mu.Lock()
	d.recording = false
	d.cancel = nil
	d.mu.Unlock()

	if err != nil {
		d.fail(classifyDictationError(err))
		return
	}
	text = cleanTranscription(text)
	if text == "" {
		d.fail(domain.ErrNoSpeech)
		return
	}

	d.log.Debug().Str("text", text).Msg("dictation: utterance")
	if d.onResult != nil {
		d.onResult(text)
	}
}

func (d *Dictation) fail(err error) {
	d.log.Debug().Err(err).Msg("dictation: error")
	if d.onError != nil {
		d.onError(err)
	}
}

// recordOnce does one recording take and returns the transcribed text.
// A cancelled context ends the take early; whatever was captured is
// still transcribed.
func (d *Dictation) recordOnce(ctx context.Context, duration time.Duration) (string, error) {
	if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}

	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	t, err := audiotranscriber.NewTranscriber(
		d.whisperBin,
		d.modelPath,
		d.tempDir,
		"wav",
		callback,
		false,
	)
	if err != nil {
		wg.Done()
		return "", fmt.Errorf("transcriber init: %w", err)
	}

	if err := t.Start(); err != nil {
		wg.Done()
		return "", fmt.Errorf("recording start: %w", err)
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}

	t.Stop()
	wg.Wait()
	return result, nil
}

// classifyDictationError maps raw capture errors onto the dictation
// error taxonomy so the caller can show distinct messages.
func classifyDictationError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access denied") {
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	return fmt.Errorf("dictation failed: %w", err)
}

// DictationNotice renders a dictation failure as the message shown to
// the user. Each failure class gets its own wording so the user knows
// whether to fix microphone permissions, speak up, or fall back to
// typing.
func DictationNotice(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return "Microphone access was denied. Allow microphone use and try again."
	case errors.Is(err, domain.ErrNoSpeech):
		return "No speech detected. Please try again."
	default:
		return "Voice input failed. Please type your question."
	}
}

// cleanTranscription strips whitespace, normalizes newlines, and
// removes common whisper artifacts like "[BLANK_AUDIO]" and
// environmental annotations.
func cleanTranscription(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)

	junk := []string{"[BLANK_AUDIO]", "[BLANK AUDIO]", "(silence)", "[silence]", "(no speech)"}
	for _, j := range junk {
		s = strings.ReplaceAll(s, j, "")
		s = strings.ReplaceAll(s, strings.ToLower(j), "")
	}

	s = envAnnotation.ReplaceAllString(s, "")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	// Known whisper hallucinations for silent audio.
	switch strings.ToLower(s) {
	case "...", "you", "thank you.", "thanks for watching!", "bye.":
		return ""
	}
	return s
}

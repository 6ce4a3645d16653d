package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// Compile-time interface check.
var _ domain.Synthesizer = (*AzureSynthesizer)(nil)

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureSynthesizer)

// WithVoice sets the TTS voice.
func WithVoice(voice string) AzureOption {
	return func(c *AzureSynthesizer) { c.voice = voice }
}

// WithAudioFormat sets the audio output format.
func WithAudioFormat(format string) AzureOption {
	return func(c *AzureSynthesizer) { c.format = format }
}

// WithHTTPTimeout sets the HTTP client timeout for TTS requests.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(c *AzureSynthesizer) { c.httpClient.Timeout = d }
}

// AzureSynthesizer converts text to WAV audio via Azure Cognitive
// Services. It implements domain.Synthesizer.
type AzureSynthesizer struct {
	subscriptionKey string
	region          string
	voice           string
	format          string
	httpClient      *http.Client
	log             zerolog.Logger
}

// NewAzureSynthesizer creates an Azure TTS client with the given credentials.
func NewAzureSynthesizer(key, region string, log zerolog.Logger, opts ...AzureOption) *AzureSynthesizer {
	c := &AzureSynthesizer{
		subscriptionKey: key,
		region:          region,
		voice:           DefaultVoice,
		format:          DefaultAudioFormat,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize converts text to speech audio data (WAV bytes).
func (c *AzureSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	url := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", c.region)

	ssml := c.buildSSML(text)
	c.log.Debug().Int("chars", len(text)).Str("voice", c.voice).Msg("tts: synthesizing")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.format)
	req.Header.Set("User-Agent", "ChefCam/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure tts error %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio data: %w", err)
	}

	c.log.Debug().Int("bytes", len(audioData)).Msg("tts: audio received")
	return audioData, nil
}

// buildSSML creates SSML markup for the synthesis request. The text is
// model-generated recipe prose, so it must be XML-escaped before
// embedding: a bare '&' or '<' in a name like "Mac & Cheese" makes the
// document invalid and Azure rejects it.
func (c *AzureSynthesizer) buildSSML(text string) string {
	var esc bytes.Buffer
	_ = xml.EscapeText(&esc, []byte(text)) // never fails on a bytes.Buffer
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='en-US'><voice xml:lang='en-US' name='%s'>%s</voice></speak>`,
		c.voice, esc.String(),
	)
}

// ChefCam — a camera-first cooking assistant served over HTTP.
//
// Point a browser at the listen address; the UI drives the JSON API and
// follows state over the websocket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/camera"
	"github.com/hammamikhairi/chefcam/internal/chat"
	"github.com/hammamikhairi/chefcam/internal/config"
	"github.com/hammamikhairi/chefcam/internal/gemini"
	"github.com/hammamikhairi/chefcam/internal/pipeline"
	"github.com/hammamikhairi/chefcam/internal/speech"
	"github.com/hammamikhairi/chefcam/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("loading configuration")
	}

	log := newLogger(cfg.Env())

	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, log,
		gemini.WithTextModel(cfg.TextModel),
		gemini.WithVisionModel(cfg.VisionModel),
		gemini.WithImageModel(cfg.ImageModel),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("creating model client")
	}

	hub := web.NewHub(log)

	// The browser captures frames client-side and posts them with the
	// detect request, so the server-side camera has no local devices.
	cam := camera.New(camera.NullProvider{}, log,
		camera.WithProfile(camera.Profile(cfg.CameraProfile)),
		camera.WithNotifier(hub),
	)

	// Read-aloud degrades gracefully: without Azure credentials or an
	// audio device the reader stays constructed but unsupported.
	var synth *speech.AzureSynthesizer
	var sink speech.Sink
	if cfg.AzureSpeechKey != "" && cfg.AzureSpeechRegion != "" {
		synth = speech.NewAzureSynthesizer(cfg.AzureSpeechKey, cfg.AzureSpeechRegion, log)
		player, perr := speech.NewPlayer(log)
		if perr != nil {
			log.Warn().Err(perr).Msg("audio player init failed, read-aloud disabled")
			synth = nil
		} else {
			sink = player
			log.Info().Str("voice", speech.DefaultVoice).Str("region", cfg.AzureSpeechRegion).Msg("read-aloud enabled")
		}
	} else {
		log.Info().Msg("read-aloud disabled: set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION to enable")
	}

	var reader *speech.Reader
	if synth != nil && sink != nil {
		reader = speech.NewReader(synth, sink, log, speech.WithOnStateChange(hub.Broadcast))
	} else {
		reader = speech.NewReader(nil, nil, log, speech.WithOnStateChange(hub.Broadcast))
	}

	pipe := pipeline.New(gen, cam, log,
		pipeline.WithNotifier(hub),
		pipeline.WithOnRecipeChange(reader.Stop),
	)

	// Dictation results feed straight into the chef conversation.
	var chatCtl *chat.Controller
	dict := speech.NewDictation(cfg.WhisperBin, cfg.WhisperModel,
		func(text string) {
			hub.Broadcast()
			if err := chatCtl.Ask(context.Background(), text); err != nil {
				log.Warn().Err(err).Msg("dictated question rejected")
			}
		},
		func(err error) {
			hub.Notify(speech.DictationNotice(err))
			log.Warn().Err(err).Msg("dictation error")
		},
		log,
		speech.WithRecordDuration(time.Duration(cfg.RecordSeconds)*time.Second),
	)

	chatCtl = chat.New(gen, pipe.ActiveRecipe, log,
		chat.WithOnChange(hub.Broadcast),
		chat.WithOnReset(dict.Stop),
	)

	srv := web.NewServer(cfg.ListenAddr, pipe, cam, reader, dict, chatCtl, hub, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
	reader.Stop()
	dict.Stop()
	if err := cam.Close(); err != nil {
		log.Warn().Err(err).Msg("releasing camera")
	}
}

// newLogger builds the process logger: pretty console output during
// development, JSON in production.
func newLogger(env config.Environment) zerolog.Logger {
	if env == config.Production {
		return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	}
	return zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

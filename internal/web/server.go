// Package web exposes the assistant over HTTP: a JSON command API for
// the browser UI and a websocket that pushes the combined application
// state after every change.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/camera"
	"github.com/hammamikhairi/chefcam/internal/chat"
	"github.com/hammamikhairi/chefcam/internal/domain"
	"github.com/hammamikhairi/chefcam/internal/pipeline"
	"github.com/hammamikhairi/chefcam/internal/speech"
)

// Server wires the HTTP surface to the pipeline and the capability
// adapters. All state lives in those components; the server only
// translates requests and snapshots.
type Server struct {
	addr   string
	pipe   *pipeline.Orchestrator
	cam    *camera.Adapter
	reader *speech.Reader
	dict   *speech.Dictation
	chat   *chat.Controller
	hub    *Hub
	log    zerolog.Logger

	router    chi.Router
	http      *http.Server
	upgrader  websocket.Upgrader
	done      chan struct{}
	cancelSub func()
}

// NewServer builds the router. Start must be called to serve.
func NewServer(
	addr string,
	pipe *pipeline.Orchestrator,
	cam *camera.Adapter,
	reader *speech.Reader,
	dict *speech.Dictation,
	chatCtl *chat.Controller,
	hub *Hub,
	log zerolog.Logger,
) *Server {
	s := &Server{
		addr:   addr,
		pipe:   pipe,
		cam:    cam,
		reader: reader,
		dict:   dict,
		chat:   chatCtl,
		hub:    hub,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 8192,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
	s.router = s.routes()

	// Pump pipeline change signals into the hub so websocket clients
	// see every state version, not just handler-driven ones.
	ch, cancel := pipe.Subscribe()
	s.cancelSub = cancel
	go func() {
		for {
			select {
			case <-ch:
				hub.Broadcast()
			case <-s.done:
				return
			}
		}
	}()

	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/state/ws", s.handleStateWS)

		r.Post("/ingredients", s.handleIngredients)
		r.Post("/preferences", s.handlePreferences)
		r.Post("/detect", s.handleDetect)
		r.Post("/suggest", s.handleSuggest)
		r.Post("/generate", s.handleGenerate)

		r.Post("/ask", s.handleAsk)
		r.Post("/chat/reset", s.handleChatReset)

		r.Post("/camera", s.handleCamera)
		r.Post("/camera/switch", s.handleCameraSwitch)
		r.Post("/camera/refresh", s.handleCameraRefresh)

		r.Post("/speech/read", s.handleSpeechRead)
		r.Post("/speech/pause", s.handleSpeechPause)
		r.Post("/speech/resume", s.handleSpeechResume)
		r.Post("/speech/stop", s.handleSpeechStop)

		r.Post("/dictate", s.handleDictate)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

// Start serves HTTP. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}
	s.log.Info().Str("addr", s.addr).Msg("web: listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and the signal pump.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	s.cancelSub()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ── state view ───────────────────────────────────────────────────

// ChatView is the conversation part of the combined state.
type ChatView struct {
	Turns    []domain.ChatTurn `json:"turns"`
	InFlight bool              `json:"inFlight"`
}

// DictationView reports speech-input availability and activity.
type DictationView struct {
	Supported bool `json:"supported"`
	Recording bool `json:"recording"`
}

// StateView is everything a client needs to render, assembled from the
// pipeline snapshot and the capability adapters. Seq is monotonic so a
// client can drop out-of-order frames.
type StateView struct {
	Seq       uint64             `json:"seq"`
	Pipeline  pipeline.Snapshot  `json:"pipeline"`
	Camera    domain.CameraState `json:"camera"`
	Speech    string             `json:"speech"`
	Chat      ChatView           `json:"chat"`
	Dictation DictationView      `json:"dictation"`
	Notices   []Notice           `json:"notices"`
}

func (s *Server) view() StateView {
	v := StateView{
		Seq:      s.hub.Seq(),
		Pipeline: s.pipe.Snapshot(),
		Camera:   s.cam.State(),
		Speech:   s.reader.State().String(),
		Chat: ChatView{
			Turns:    s.chat.Turns(),
			InFlight: s.chat.InFlight(),
		},
		Notices: s.hub.Notices(),
	}
	if s.dict != nil {
		v.Dictation = DictationView{
			Supported: s.dict.Supported(),
			Recording: s.dict.Recording(),
		}
	}
	return v
}

// ── handlers ─────────────────────────────────────────────────────

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleIngredients(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.pipe.SetIngredients(req.Text)
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dietary string `json:"dietary"`
		Cuisine string `json:"cuisine"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.pipe.SetPreferences(req.Dietary, req.Cuisine)
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Frame string `json:"frame"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.pipe.DetectFrame(r.Context(), req.Frame); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.Suggest(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.pipe.Generate(r.Context(), req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.chat.Ask(r.Context(), req.Question); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleChatReset(w http.ResponseWriter, _ *http.Request) {
	s.chat.Reset()
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On bool `json:"on"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.cam.SetEnabled(r.Context(), req.On); err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast()
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleCameraSwitch(w http.ResponseWriter, r *http.Request) {
	if err := s.cam.SwitchToNext(r.Context()); err != nil && !errors.Is(err, domain.ErrSingleDevice) {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast()
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleCameraRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.cam.Refresh(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast()
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSpeechRead(w http.ResponseWriter, r *http.Request) {
	if err := s.reader.ReadRecipe(r.Context(), s.pipe.ActiveRecipe()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSpeechPause(w http.ResponseWriter, _ *http.Request) {
	s.reader.Pause()
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSpeechResume(w http.ResponseWriter, _ *http.Request) {
	s.reader.Resume()
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSpeechStop(w http.ResponseWriter, _ *http.Request) {
	s.reader.Stop()
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleDictate(w http.ResponseWriter, r *http.Request) {
	if s.dict == nil {
		s.writeError(w, domain.ErrUnsupported)
		return
	}
	if err := s.dict.Start(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast()
	s.writeJSON(w, http.StatusOK, s.view())
}

// ── encoding & errors ────────────────────────────────────────────

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("web: encoding response")
	}
}

// writeError maps component errors onto HTTP statuses. Busy-style
// rejections are 409 so the UI can simply ignore them; validation
// problems are 400.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrStageBusy),
		errors.Is(err, domain.ErrAskInFlight),
		errors.Is(err, domain.ErrCameraOff),
		errors.Is(err, domain.ErrFrameNotReady):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNoIngredients),
		errors.Is(err, domain.ErrNoRecipeName),
		errors.Is(err, domain.ErrNoRecipe),
		errors.Is(err, domain.ErrEmptyQuestion),
		errors.Is(err, domain.ErrSingleDevice):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupported):
		status = http.StatusNotImplemented
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNoDevices):
		status = http.StatusServiceUnavailable
	default:
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			status = http.StatusBadGateway
		}
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeTimeout bounds a single websocket write.
const writeTimeout = 10 * time.Second

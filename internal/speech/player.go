package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
)

// Player handles audio playback of WAV/PCM data via oto. At most one
// clip plays at a time; starting a new clip supersedes the previous one.
type Player struct {
	ctx *oto.Context
	log zerolog.Logger

	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
	paused bool
	gen    uint64 // identifies the active clip
}

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error if the audio device is unavailable.
func NewPlayer(log zerolog.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug().Int("rate", SampleRate).Int("channels", ChannelCount).Msg("audio player initialized")
	return &Player{ctx: ctx, log: log}, nil
}

// Play starts playback of WAV data and returns immediately. done is
// called exactly once when the clip finishes naturally or is stopped;
// stopped reports which of the two happened. Any clip already playing
// is stopped first.
func (p *Player) Play(wavData []byte, done func(stopped bool)) error {
	pcm, err := extractPCM(wavData)
	if err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	if p.active != nil {
		p.active.Pause()
		p.active.Close()
	}
	p.gen++
	gen := p.gen
	p.active = player
	p.paused = false
	p.mu.Unlock()

	player.Play()
	p.log.Debug().Int("bytes", len(pcm)).Msg("audio player: playing")

	go p.watch(player, gen, done)
	return nil
}

// watch polls the clip until it finishes or is superseded/stopped.
func (p *Player) watch(player *oto.Player, gen uint64, done func(stopped bool)) {
	for {
		time.Sleep(10 * time.Millisecond)

		p.mu.Lock()
		if p.gen != gen {
			// Superseded by a newer clip or stopped.
			p.mu.Unlock()
			done(true)
			return
		}
		if p.paused {
			p.mu.Unlock()
			continue
		}
		if !player.IsPlaying() {
			p.active = nil
			p.mu.Unlock()
			player.Close()
			done(false)
			return
		}
		p.mu.Unlock()
	}
}

// Pause suspends the current clip. No-op when nothing is playing.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil && !p.paused {
		p.active.Pause()
		p.paused = true
	}
}

// Resume continues a paused clip. No-op when nothing is paused.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil && p.paused {
		p.active.Play()
		p.paused = false
	}
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return
	}
	p.active.Pause()
	p.active.Close()
	p.active = nil
	p.paused = false
	p.gen++ // lets the watcher report the clip as stopped
	p.log.Debug().Msg("audio player: stopped")
}

// extractPCM strips the WAV/RIFF header and returns raw PCM data.
func extractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}

	// Verify RIFF header.
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	// Walk chunks to find the "data" chunk.
	pos := 12
	for pos < len(wav)-8 {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))

		if chunkID == "data" {
			start := pos + 8
			end := start + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[start:end], nil
		}

		pos += 8 + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}

package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const pingInterval = 30 * time.Second

// handleStateWS upgrades the connection and pushes the combined state
// view after every change. The first frame is sent immediately; later
// frames are coalesced, so a slow client sees the latest state rather
// than a backlog.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("web: websocket upgrade failed")
		return
	}
	defer conn.Close()

	signals, cancel := s.hub.Subscribe()
	defer cancel()

	// Drain the read side to learn about disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func() bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(s.view()); err != nil {
			s.log.Debug().Err(err).Msg("web: websocket write failed")
			return false
		}
		return true
	}

	if !write() {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-signals:
			if !write() {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.done:
			return
		}
	}
}

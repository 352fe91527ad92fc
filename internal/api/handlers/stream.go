package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"orgsetup/internal/progress"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Stream pushes every progress event of every run to websocket clients.
// A run_id query parameter narrows the stream to one run.
type Stream struct {
	Hub *progress.Hub
}

func (s *Stream) RunEvents(c *gin.Context) {
	runID := c.Query("run_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := s.Hub.Subscribe(64)
	defer unsubscribe()
	log.Info().Str("run_id", runID).Str("ip", c.ClientIP()).Msg("🔌 Progress stream connected")

	// the client only ever closes; reading is how we notice
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			log.Info().Str("run_id", runID).Msg("🔌 Progress stream disconnected")
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if runID != "" && e.RunID != runID {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Warn().Err(err).Msg("⚠️ WebSocket write failed")
				return
			}
		}
	}
}

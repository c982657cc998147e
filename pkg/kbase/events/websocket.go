package events

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// allow all origins
		return true
	},
}

// RegisterRoutes registers the change feed on the given router group
func (h *Hub) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/events", h.ServeWS)
}

// ServeWS streams events to a websocket client as JSON text frames
// @Summary Catalog change feed
// @Description Upgrade to a websocket that receives one JSON event per catalog change
// @Tags events
// @Router /events [get]
func (h *Hub) ServeWS(c *gin.Context) {
	logger := zerolog.Ctx(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub, cancel := h.Subscribe()
	defer cancel()

	logger.Debug().Str("remote_addr", c.Request.RemoteAddr).Msg("event subscriber connected")

	// Clients never send anything useful; reading drives pong handling and
	// notices when they go away.
	done := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug().Err(err).Msg("event write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			logger.Debug().Msg("event subscriber disconnected")
			return
		}
	}
}

package notifyhub

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nimbusdrive/nimbus-go/tool"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The hub only serves the local dev UI.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and keeps it registered until the peer
// goes away. Incoming messages are discarded; the stream is one-way.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		tool.DefaultLogger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	h.Register(conn)
	go func() {
		defer func() {
			h.Unregister(conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

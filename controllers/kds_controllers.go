package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-order-engine/kds"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

// KDSController upgrades authenticated clients to the realtime notification socket.
type KDSController struct {
	Hub      *kds.Hub
	upgrader websocket.Upgrader
}

// NewKDSController accepts websocket handshakes from allowedOrigin, or from any origin when it is "*".
func NewKDSController(hub *kds.Hub, allowedOrigin string) *KDSController {
	return &KDSController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Handler -> GET /ws
func (kc *KDSController) Handler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	ws, err := kc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.InfoLogger.Warnf("Websocket upgrade failed for user %d: %v", actor.UserID, err)
		return
	}

	kc.Hub.Register(ws, actor.UserID, actor.Role)
	defer kc.Hub.Unregister(ws)

	// Inbound messages are ignored; reading until an error notices the disconnect.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. Authentication happens before
// this handler runs.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			// Devices are native clients, not browsers on another origin.
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		logger.Debug("websocket connected", "clients", hub.ClientCount()+1)
		client := NewClient(hub, conn)
		client.Run(r.Context())
		logger.Debug("websocket disconnected", "clients", hub.ClientCount())
	}
}

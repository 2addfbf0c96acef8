package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/nuturetable/nuturetable/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the user's
// change notifications until the connection closes.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			hub.logger.Warn("accept", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, userID).Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}

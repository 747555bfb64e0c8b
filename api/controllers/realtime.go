package controllers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/mealshare-backend/api/responses"
	"github.com/angelmondragon/mealshare-backend/pkg/config"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
)

const maxInboundFrame = 512

// RealtimeSocket upgrades the request and streams the caller's deliveries
// until either side closes. Inbound frames are read only to notice the close.
func RealtimeSocket(hub *realtime.Hub, cfg config.RealtimeConfig, origins []string, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.AllowAnyOrigins {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, origin)
		},
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("realtime hub"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			logg.Warn(logg.WithField(r.Context(), "reason", err.Error()), "realtime.upgrade_failed")
			return
		}

		client := hub.Register(userID)
		ctx := r.Context()
		ctx = logg.WithField(ctx, "client_id", client.ID.String())
		logg.Info(ctx, "realtime.connected")

		done := make(chan struct{})
		go func() {
			defer close(done)
			writePump(conn, client, writeTimeout, pingInterval)
		}()

		conn.SetReadLimit(maxInboundFrame)
		_ = conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		hub.Unregister(client)
		<-done
		_ = conn.Close()
		logg.Info(ctx, "realtime.disconnected")
	}
}

// writePump owns every write on conn. It exits when the hub closes the
// outbound channel or a write fails.
func writePump(conn *websocket.Conn, client *realtime.Client, writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.Outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

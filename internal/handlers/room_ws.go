package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/matchmaking"
	"github.com/hassanwarsame/quizduel/internal/middleware"
	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// RoomWSHandler opens a private room for the caller and streams the code,
// then waits for a joiner. If the host disconnects before anyone joins, the
// room entry is released and the code stops working.
func RoomWSHandler(logger *logrus.Logger, svc *matchmaking.Service, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := models.Subject(r.URL.Query().Get("subject"))
		if subject == "" {
			http.Error(w, "missing subject", http.StatusBadRequest)
			return
		}

		hostID, err := requireUser(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"room"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "room" {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Subscribe before the room exists: a joiner consuming the code right
		// after creation notifies only the subscribers registered at commit
		// time.
		updates, err := st.Subscribe(ctx, store.UserPath(hostID))
		if err != nil {
			logger.Warnf("profile subscribe failed for %s: %v", hostID, err)
			c.Close(websocket.StatusInternalError, "subscribe failed")
			return
		}

		res, err := svc.CreateRoom(ctx, hostID, subject)
		if err != nil {
			logger.Warnf("createRoom failed for %s: %v", hostID, err)
			writeJSON(ctx, c, map[string]any{"type": "error", "message": "failed to create room"})
			c.Close(websocket.StatusInternalError, "create failed")
			return
		}

		if res.Lease != nil {
			go res.Lease.Keepalive(ctx)
		}
		writeJSON(ctx, c, map[string]any{"type": "room_created", "code": res.Code})

		// Reads only serve to notice the host going away.
		go func() {
			defer cancel()
			for {
				if _, _, err := c.Read(ctx); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, ctx.Err())
				return
			case raw, ok := <-updates:
				if !ok {
					return
				}
				if raw == nil {
					continue
				}
				var profile models.ProfileDoc
				if err := json.Unmarshal(raw, &profile); err != nil {
					continue
				}
				if profile.ActiveMatch != nil {
					writeJSON(ctx, c, map[string]any{"type": "match_found", "matchId": *profile.ActiveMatch})
					c.Close(websocket.StatusNormalClosure, "matched")
					return
				}
			}
		}
	}
}

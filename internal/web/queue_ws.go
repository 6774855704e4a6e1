package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voxstudio/internal/observe"
)

// wsWriteTimeout bounds a single snapshot write to a websocket client.
const wsWriteTimeout = 5 * time.Second

// handleQueueWS streams queue snapshots to the browser until either side
// goes away. The first message is the current state.
func (s *Server) handleQueueWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Debug("queue websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	// Nothing is read from the client; CloseRead handles control frames and
	// cancels ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())

	snaps, unsubscribe := s.queue.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap, ok := <-snaps:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "queue closed")
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				conn.Close(websocket.StatusInternalError, "encode failed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				observe.Logger(r.Context()).Debug("queue websocket write failed", "err", err)
				return
			}
		}
	}
}

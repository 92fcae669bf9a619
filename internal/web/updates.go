package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"gamecal/internal/notify"
)

const updateWriteTimeout = 5 * time.Second

// handleUpdates streams notify.Change messages over a websocket. The first
// message carries the current generation so clients can tell whether their
// cached view is stale.
//
// GET /api/updates
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error("websocket accept failed", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing connection")

	changes, cancel := s.hub.Subscribe()
	defer cancel()

	// Clients only listen; CloseRead handles their close frame.
	ctx := conn.CloseRead(r.Context())

	hello := notify.Change{Generation: s.hub.Generation(), Reason: "hello", At: s.now()}
	if err := s.writeUpdate(ctx, conn, hello); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := s.writeUpdate(ctx, conn, c); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeUpdate(ctx context.Context, conn *websocket.Conn, c notify.Change) error {
	ctx, cancel := context.WithTimeout(ctx, updateWriteTimeout)
	defer cancel()

	err := wsjson.Write(ctx, conn, c)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug("websocket write failed", "err", err)
	}
	return err
}

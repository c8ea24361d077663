package counters

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/tallyhub/internal/app/system/identity"
	"github.com/dalemusser/tallyhub/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Live feed timing.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Live handles GET /api/groups/{gid}/live.
//
// The participant is joined to the group, then the connection receives one
// JSON view per change of the group, starting with the default view. The
// subscription is torn down when the client closes or stops answering pings.
// Messages from the client are read only to detect that.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	gid, ok := h.groupID(w, r)
	if !ok {
		return
	}
	pid, _ := identity.ParticipantFrom(r.Context())

	h.join(r.Context(), gid)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Log.Debug("live upgrade failed", zap.String("group_id", gid), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, err := h.Counters.Subscribe(ctx, gid)
	if err != nil {
		h.Log.Error("live subscribe failed", zap.String("group_id", gid), zap.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}
	defer feed.Cancel()

	log := h.Log.With(zap.String("group_id", gid), zap.String("participant_id", pid))
	log.Debug("live feed opened")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return errClientGone
			}
		}
	})

	g.Go(func() error {
		// The reader only returns once the connection is closed.
		defer conn.Close()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		if err := writeView(conn, newLiveView(models.DefaultGroupView(), pid)); err != nil {
			return err
		}
		for {
			select {
			case v, ok := <-feed.Events():
				if !ok {
					closeWith(conn, websocket.CloseInternalServerErr, "feed ended")
					return feed.Err()
				}
				if err := writeView(conn, newLiveView(v, pid)); err != nil {
					return err
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return err
				}
			case <-gctx.Done():
				closeWith(conn, websocket.CloseNormalClosure, "")
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errClientGone) {
		log.Warn("live feed ended", zap.Error(err))
		return
	}
	log.Debug("live feed closed")
}

var errClientGone = errors.New("client gone")

func writeView(conn *websocket.Conn, v liveView) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

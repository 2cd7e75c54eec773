package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/matthewsawatzky/themeswitch/internal/document"
	"github.com/matthewsawatzky/themeswitch/internal/shell"
)

const eventBuffer = 32

// handleEvents streams theme-changed events and user notices over a
// websocket. Slow readers drop messages rather than block the applicator.
func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	msgs := make(chan streamMessage, eventBuffer)
	push := func(m streamMessage) {
		select {
		case msgs <- m:
		default:
			a.logger.Debug("event stream full, dropping message", "type", m.Type)
		}
	}
	stopDoc := a.shell.Document.Subscribe(func(e document.Event) {
		push(streamMessage{Type: "event", Event: e})
	})
	defer stopDoc()
	stopNotices := a.shell.Notices.Subscribe(func(n shell.Notice) {
		push(streamMessage{Type: "notice", Notice: &n})
	})
	defer stopNotices()

	ctx := conn.CloseRead(r.Context())
	if err := a.writeFrame(ctx, conn, streamMessage{Type: "state", Event: a.shell.Engine.State()}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case m := <-msgs:
			if err := a.writeFrame(ctx, conn, m); err != nil {
				a.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}

func (a *App) writeFrame(ctx context.Context, conn *websocket.Conn, m streamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, m)
}

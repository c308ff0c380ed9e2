package realtime

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// AcceptOptions configures the websocket upgrade.
type AcceptOptions struct {
	// OriginPatterns lists host patterns allowed to connect cross-origin.
	OriginPatterns []string
}

type wsConn struct {
	c *websocket.Conn
}

// Accept upgrades the request to a websocket. The returned context is canceled
// when the client closes the connection, so a running session stops at its
// next send or wait. Clients are not expected to send data; any data message
// also ends the session.
func Accept(w http.ResponseWriter, r *http.Request, opts AcceptOptions) (Conn, context.Context, error) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: opts.OriginPatterns,
	})
	if err != nil {
		return nil, nil, err
	}
	ctx := c.CloseRead(r.Context())
	return &wsConn{c: c}, ctx, nil
}

func (w *wsConn) Write(ctx context.Context, v any) error {
	return wsjson.Write(ctx, w.c, v)
}

func (w *wsConn) Close(cause error) error {
	if cause != nil {
		return w.c.CloseNow()
	}
	return w.c.Close(websocket.StatusNormalClosure, "")
}

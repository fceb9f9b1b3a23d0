package remote

import (
	"context"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// conn is the frame transport a session runs on. The websocket adapter
// implements it in production; tests substitute an in-memory pair so the
// protocol logic runs without sockets.
type conn interface {
	ReadFrame(ctx context.Context) (frame, error)
	WriteFrame(ctx context.Context, f frame) error
	Close(code websocket.StatusCode, reason string) error
}

// wsConn adapts a websocket connection to the frame transport.
type wsConn struct {
	c *websocket.Conn
}

var _ conn = wsConn{}

func (w wsConn) ReadFrame(ctx context.Context) (frame, error) {
	var f frame
	if err := wsjson.Read(ctx, w.c, &f); err != nil {
		return frame{}, err
	}
	return f, nil
}

func (w wsConn) WriteFrame(ctx context.Context, f frame) error {
	return wsjson.Write(ctx, w.c, f)
}

func (w wsConn) Close(code websocket.StatusCode, reason string) error {
	return w.c.Close(code, reason)
}

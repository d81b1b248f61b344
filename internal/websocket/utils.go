package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends a strongly-typed payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message with a read deadline.
func ReadJSON(conn *websocket.Conn, v any) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}

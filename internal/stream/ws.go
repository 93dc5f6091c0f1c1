package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSWriter sends each frame as one JSON text message.
type WSWriter struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func NewWSWriter(conn *websocket.Conn, writeTimeout time.Duration) *WSWriter {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WSWriter{conn: conn, writeTimeout: writeTimeout}
}

func (w *WSWriter) WriteFrame(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteJSON(v)
}

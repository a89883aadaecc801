package protocol

import (
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// link is a websocket that can be swapped for a fresh one after a drop.
type link struct {
	// mu guards conn and serialises writers; gorilla allows one
	// concurrent writer.
	mu    sync.Mutex
	conn  *ws.Conn
	url   string
	retry time.Duration
}

func dialLink(url string, retry time.Duration) (*link, error) {
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	log.Debug("Hub link up", "url", url)
	return &link{conn: conn, url: url, retry: retry}, nil
}

func (l *link) write(line string) error {
	log.Debug("Hub send", "frame", line)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(ws.TextMessage, []byte(line))
}

// read blocks for the next text frame. Any error leaves the conn unusable.
func (l *link) read() (string, error) {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	log.Debug("Hub recv", "frame", string(msg))
	return string(msg), nil
}

// redial retries every l.retry until it connects or stop closes.
func (l *link) redial(stop <-chan struct{}) bool {
	for {
		conn, _, err := ws.DefaultDialer.Dial(l.url, nil)
		if err == nil {
			l.mu.Lock()
			l.conn.Close()
			l.conn = conn
			l.mu.Unlock()
			return true
		}

		select {
		case <-stop:
			return false
		case <-time.After(l.retry):
		}
	}
}

func (l *link) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conn.WriteMessage(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	return l.conn.Close()
}

// Package bus is a JSON message client for the shared websocket bus that
// the server and the agents hang off.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	KindReminder = "reminder"

	Broadcast = "*"
)

// ErrBadMessage is returned by Read for a frame that is not a bus message.
// The connection stays usable.
var ErrBadMessage = errors.New("bad bus message")

type Bus struct {
	conn *websocket.Conn

	// gorilla allows one concurrent writer
	wmu sync.Mutex
}

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func NewBus(wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{conn: conn}, nil
}

func (b *Bus) Read() (*Message, error) {
	_, msg, err := b.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadMessage, err)
	}

	return &m, nil
}

func (b *Bus) Write(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// Publish sends content to every listener.
func (b *Bus) Publish(from, kind, content string) error {
	return b.Write(&Message{From: from, To: Broadcast, Kind: kind, Content: content})
}

// For reports whether m is addressed to name, directly or by broadcast.
func (m *Message) For(name string) bool {
	return m.To == name || m.To == Broadcast
}

func (b *Bus) Close() error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}

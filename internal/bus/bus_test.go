package bus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// echoBus sends every frame back to its sender.
func echoBus(t *testing.T) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			conn.WriteMessage(kind, data)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPublishRead(t *testing.T) {
	b, err := NewBus(echoBus(t))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.Publish("joona", KindReminder, "call mom"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	m, err := b.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.From != "joona" || m.Kind != KindReminder || m.Content != "call mom" {
		t.Errorf("message = %+v", m)
	}
	if !m.For("desk-agent") {
		t.Error("broadcast should reach every agent")
	}
}

func TestConcurrentWrites(t *testing.T) {
	b, err := NewBus(echoBus(t))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Write(&Message{From: "a", To: "b", Kind: KindReminder}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	for range n {
		m, err := b.Read()
		if err != nil {
			t.Fatal(err)
		}
		if m.For("c") || !m.For("b") {
			t.Errorf("addressing of %+v", m)
		}
	}
}

func TestDialFailure(t *testing.T) {
	if _, err := NewBus("ws://127.0.0.1:1/ws"); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestReadSkipsMalformedFrame(t *testing.T) {
	b, err := NewBus(echoBus(t))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("joona", KindReminder, "call mom"); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Read(); !errors.Is(err, ErrBadMessage) {
		t.Fatalf("first Read err = %v, want ErrBadMessage", err)
	}

	m, err := b.Read()
	if err != nil {
		t.Fatalf("connection unusable after bad frame: %v", err)
	}
	if m.Kind != KindReminder || m.Content != "call mom" || m.To != Broadcast {
		t.Errorf("message = %+v", m)
	}
}

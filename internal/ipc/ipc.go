// Package ipc carries control commands from joona-ctl to the running agent
// over a unix socket, one JSON request and one JSON ack per connection.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/joona.sock"

const (
	CmdTrigger = "trigger"
	CmdAsk     = "ask"
)

type ControlMessage struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
}

type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler returns an error to report back to the sender.
type Handler func(ControlMessage) error

// StartServer listens on path and serves every connection in its own
// goroutine until the returned listener is closed.
func StartServer(path string, handler Handler) (net.Listener, error) {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				log.Warn("IPC accept failed", "err", err)
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return ln, nil
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Bad IPC message", "err", err)
		return
	}
	log.Debug("IPC command", "cmd", msg.Cmd)

	ack := Ack{OK: true}
	if err := handler(msg); err != nil {
		ack = Ack{Error: err.Error()}
	}
	json.NewEncoder(conn).Encode(ack)
}

// SendCommand delivers msg and waits up to timeout for the agent's ack.
func SendCommand(path string, msg ControlMessage, timeout time.Duration) error {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	var ack Ack
	if err := json.NewDecoder(conn).Decode(&ack); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if !ack.OK {
		return errors.New(ack.Error)
	}
	return nil
}

// Package protocol speaks the device hub's colon framed line protocol over
// a websocket: TO:VERB:NOUN[:ARGS...]:FROM.
package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	VerbOK  = "OK"
	VerbErr = "ERR"
)

var ErrBadFrame = errors.New("bad hub frame")

type Config struct {
	Shard      string // our address on the hub
	URL        string
	RetryEvery time.Duration
	// OnEvent gets frames for us that no request is waiting for.
	OnEvent func(*Frame)
}

type Frame struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (f *Frame) String() string {
	parts := make([]string, 0, 4+len(f.Args))
	parts = append(parts, f.To, f.Verb, f.Noun)
	parts = append(parts, f.Args...)
	parts = append(parts, f.From)
	return strings.Join(parts, ":")
}

// Refused reports whether the hub answered with an error verb.
func (f *Frame) Refused() bool {
	return f.Verb == VerbErr
}

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseFrame reads one hub line. Verb and noun are upper-cased.
func ParseFrame(line string) (*Frame, error) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: %d fields in %q", ErrBadFrame, len(parts), line)
	}
	for i, p := range parts {
		if !tokenRe.MatchString(p) {
			return nil, fmt.Errorf("%w: field %d %q", ErrBadFrame, i, p)
		}
	}

	return &Frame{
		To:   parts[0],
		Verb: strings.ToUpper(parts[1]),
		Noun: strings.ToUpper(parts[2]),
		Args: parts[3 : len(parts)-1],
		From: parts[len(parts)-1],
	}, nil
}

// Client holds one hub connection. Requests are answered by the next
// frame addressed to our shard, so only one may be in flight.
type Client struct {
	link    *link
	shard   string
	onEvent func(*Frame)

	reqMu sync.Mutex // one request at a time

	waiterMu sync.Mutex
	waiter   chan *Frame

	closeOnce sync.Once
	done      chan struct{}
}

func Dial(cfg Config) (*Client, error) {
	if cfg.RetryEvery <= 0 {
		cfg.RetryEvery = 5 * time.Second
	}

	l, err := dialLink(cfg.URL, cfg.RetryEvery)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}

	return &Client{
		link:    l,
		shard:   cfg.Shard,
		onEvent: cfg.OnEvent,
		done:    make(chan struct{}),
	}, nil
}

// Close stops Run and drops the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.link.close()
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Send writes parts followed by our shard as one frame.
func (c *Client) Send(parts ...string) error {
	line := strings.Join(parts, ":") + ":" + c.shard
	if err := c.link.write(line); err != nil {
		return fmt.Errorf("send %s: %w", line, err)
	}
	return nil
}

// Request sends parts and waits for the reply. Run must be serving the
// connection.
func (c *Client) Request(ctx context.Context, parts ...string) (*Frame, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	w := c.setWaiter(make(chan *Frame, 1))
	defer c.setWaiter(nil)

	if err := c.Send(parts...); err != nil {
		return nil, err
	}

	select {
	case f := <-w:
		return f, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("await hub reply: %w", ctx.Err())
	}
}

// Run reads frames until Close, reconnecting whenever the link drops.
func (c *Client) Run() {
	for {
		line, err := c.link.read()
		if err != nil {
			if c.closed() {
				return
			}
			log.Warn("Hub link lost, reconnecting", "url", c.link.url, "err", err)
			if !c.link.redial(c.done) {
				return
			}
			log.Info("Hub link restored")
			continue
		}

		f, err := ParseFrame(line)
		if err != nil {
			log.Warn("Dropping hub frame", "err", err)
			continue
		}
		if f.To != c.shard {
			continue
		}
		if !c.deliver(f) && c.onEvent != nil {
			c.onEvent(f)
		}
	}
}

func (c *Client) setWaiter(w chan *Frame) chan *Frame {
	c.waiterMu.Lock()
	defer c.waiterMu.Unlock()
	c.waiter = w
	return w
}

// deliver hands f to a pending Request without blocking.
func (c *Client) deliver(f *Frame) bool {
	c.waiterMu.Lock()
	defer c.waiterMu.Unlock()
	if c.waiter == nil {
		return false
	}
	select {
	case c.waiter <- f:
	default:
	}
	c.waiter = nil
	return true
}

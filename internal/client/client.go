// Package client is the agent's view of the joona server.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"joona/internal/assistant"
)

var ErrNoAudio = errors.New("reply has no audio")

type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	rc := resty.New()
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	}
	rc.SetBaseURL(baseURL).
		SetTimeout(90 * time.Second).
		SetError(&apiError{})

	return &Client{http: rc}
}

// Upload sends a recorded WAV and returns the server's reply.
func (c *Client) Upload(ctx context.Context, wav []byte) (*assistant.Reply, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "audio/wav").
		SetBody(bytes.NewReader(wav)).
		SetResult(&assistant.Reply{}).
		Post("/upload-audio")
	return reply(resp, err)
}

// Ask runs typed text through the server's reply pipeline.
func (c *Client) Ask(ctx context.Context, text string) (*assistant.Reply, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		SetResult(&assistant.Reply{}).
		Post("/v1/ask")
	return reply(resp, err)
}

// FetchAudio downloads the reply audio. The caller closes the stream.
func (c *Client) FetchAudio(ctx context.Context, r *assistant.Reply) (io.ReadCloser, error) {
	if r.ResponseAudio == nil {
		return nil, ErrNoAudio
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(*r.ResponseAudio)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	if resp.IsError() {
		resp.RawBody().Close()
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode())
	}
	return resp.RawBody(), nil
}

func reply(resp *resty.Response, err error) (*assistant.Reply, error) {
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
			if e.Details != "" {
				return nil, fmt.Errorf("server: %s: %s", e.Error, e.Details)
			}
			return nil, fmt.Errorf("server: %s", e.Error)
		}
		return nil, fmt.Errorf("server: status %d", resp.StatusCode())
	}
	return resp.Result().(*assistant.Reply), nil
}

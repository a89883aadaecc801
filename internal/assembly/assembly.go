// Package assembly is a small AssemblyAI transcription client: upload the
// file, create a transcript job and poll it until it settles.
package assembly

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL      = "https://api.assemblyai.com"
	DefaultPollInterval = 2 * time.Second
)

var (
	ErrUpload        = errors.New("upload failed")
	ErrTranscription = errors.New("transcription failed")
)

type Client struct {
	http *resty.Client
	poll time.Duration
}

type Option func(*Client)

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.poll = d }
}

func NewClient(apiKey, baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rc := resty.New()
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	}
	rc.SetBaseURL(baseURL).
		SetHeader("authorization", apiKey)

	c := &Client{http: rc, poll: DefaultPollInterval}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcript struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Transcribe blocks until the job completes, fails or ctx is done.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	audioURL, err := c.upload(ctx, path)
	if err != nil {
		return "", err
	}

	id, err := c.create(ctx, audioURL)
	if err != nil {
		return "", err
	}

	log.Debug("Transcript queued", "id", id)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		var tr transcript
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&tr).
			Get("/v2/transcript/" + id)
		if err != nil {
			return "", fmt.Errorf("poll transcript %s: %w", id, err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("poll transcript %s: status %d: %w", id, resp.StatusCode(), ErrTranscription)
		}

		switch tr.Status {
		case "completed":
			return tr.Text, nil
		case "error":
			return "", fmt.Errorf("%w: %s", ErrTranscription, tr.Error)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var out uploadResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(f).
		SetResult(&out).
		Post("/v2/upload")
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode(), resp.String())
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("%w: no upload_url in response", ErrUpload)
	}

	return out.UploadURL, nil
}

func (c *Client) create(ctx context.Context, audioURL string) (string, error) {
	var out transcript
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"audio_url": audioURL}).
		SetResult(&out).
		Post("/v2/transcript")
	if err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	if resp.IsError() || out.ID == "" {
		return "", fmt.Errorf("%w: create status %d: %s", ErrTranscription, resp.StatusCode(), resp.String())
	}

	return out.ID, nil
}

// Package gtts turns reply text into 16 kHz mono WAV files using the Google
// Translate speech endpoint.
package gtts

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultEndpoint = "https://translate.google.com/translate_tts"

	// The endpoint rejects longer queries.
	maxChunk = 100

	resampleQuality = 4
)

var OutputFormat = beep.Format{
	SampleRate:  16000,
	NumChannels: 1,
	Precision:   2,
}

var ErrEmptyText = errors.New("nothing to synthesize")

type Synthesizer struct {
	http     *resty.Client
	endpoint string
	dir      string
	lang     string

	// mu keeps two requests for the same text from writing one file.
	mu sync.Mutex
}

func NewSynthesizer(dir, lang, endpoint string, httpClient *http.Client) *Synthesizer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if lang == "" {
		lang = "en"
	}

	rc := resty.New()
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	}
	rc.SetHeader("User-Agent", "Mozilla/5.0")

	return &Synthesizer{
		http:     rc,
		endpoint: endpoint,
		dir:      dir,
		lang:     lang,
	}
}

// FileName is stable per text so repeated replies reuse the same file.
func FileName(text string) string {
	sum := md5.Sum([]byte(text))
	return "tts_" + hex.EncodeToString(sum[:])[:8] + ".wav"
}

// Synthesize returns the WAV file name inside the output dir.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	chunks := splitText(text, maxChunk)
	if len(chunks) == 0 {
		return "", ErrEmptyText
	}

	name := FileName(text)
	path := filepath.Join(s.dir, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		log.Debug("TTS cache hit", "file", name)
		return name, nil
	}

	var speech bytes.Buffer
	for i, chunk := range chunks {
		data, err := s.fetch(ctx, chunk, i)
		if err != nil {
			return "", err
		}
		speech.Write(data)
	}

	tmp, err := os.CreateTemp(s.dir, "tts-*.wav.part")
	if err != nil {
		return "", fmt.Errorf("create wav: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Transcode(io.NopCloser(&speech), tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store wav: %w", err)
	}

	log.Info("TTS created", "file", name)
	return name, nil
}

func (s *Synthesizer) fetch(ctx context.Context, chunk string, idx int) ([]byte, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ie":      "UTF-8",
			"client":  "tw-ob",
			"tl":      s.lang,
			"q":       chunk,
			"idx":     fmt.Sprint(idx),
			"textlen": fmt.Sprint(len(chunk)),
		}).
		Get(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tts request: status %d", resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, errors.New("tts request: empty audio")
	}
	return resp.Body(), nil
}

// Transcode decodes MP3 and writes it as OutputFormat WAV.
func Transcode(src io.ReadCloser, dst io.WriteSeeker) error {
	stream, format, err := mp3.Decode(src)
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer stream.Close()

	var s beep.Streamer = stream
	if format.SampleRate != OutputFormat.SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, OutputFormat.SampleRate, stream)
	}

	// the encoder averages both channels when NumChannels is 1
	if err := wav.Encode(dst, s, OutputFormat); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

// splitText cuts text into chunks of at most max bytes, preferring
// sentence ends, then spaces.
func splitText(text string, max int) []string {
	var chunks []string
	for _, sentence := range splitSentences(text) {
		for len(sentence) > max {
			cut := strings.LastIndex(sentence[:max], " ")
			if cut <= 0 {
				cut = max
				for cut > 0 && !utf8Start(sentence[cut]) {
					cut--
				}
			}
			if chunk := strings.TrimSpace(sentence[:cut]); speakable(chunk) {
				chunks = append(chunks, chunk)
			}
			sentence = strings.TrimSpace(sentence[cut:])
		}
		if speakable(sentence) {
			chunks = append(chunks, sentence)
		}
	}
	return chunks
}

// splitSentences ends a sentence after a run of terminators, so "..." or
// "?!" stay with the words they follow.
func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	pos := 0
	for i, r := range runes {
		pos += utf8.RuneLen(r)
		if !isTerminator(r) || (i+1 < len(runes) && isTerminator(runes[i+1])) {
			continue
		}
		if s := strings.TrimSpace(text[start:pos]); s != "" {
			out = append(out, s)
		}
		start = pos
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// speakable reports whether s has anything to say beyond punctuation.
func speakable(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"joona/internal/assistant"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/upload-audio", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "audio/wav" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unsupported Content-Type"})
			return
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) == "silence" {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Transcription failed", "details": "no speech"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"filename":       "x.wav",
			"transcript":     "tell me a joke",
			"intent":         "tell_joke",
			"category":       "interaction",
			"time":           nil,
			"response":       "Why did the robot go on vacation?",
			"response_audio": "/play-audio/tts_1.wav",
		})
	})
	mux.HandleFunc("/v1/ask", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]any{"transcript": req["text"], "intent": "greeting", "response": "Hi!"})
	})
	mux.HandleFunc("/play-audio/tts_1.wav", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFwav"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestUploadAndFetch(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, srv.Client())
	ctx := context.Background()

	r, err := c.Upload(ctx, []byte("RIFF"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if r.Intent != "tell_joke" || r.Time != nil || r.ResponseAudio == nil {
		t.Fatalf("reply = %+v", r)
	}

	audio, err := c.FetchAudio(ctx, r)
	if err != nil {
		t.Fatalf("FetchAudio: %v", err)
	}
	defer audio.Close()
	data, _ := io.ReadAll(audio)
	if string(data) != "RIFFwav" {
		t.Errorf("audio = %q", data)
	}
}

func TestUploadServerError(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, srv.Client())

	_, err := c.Upload(context.Background(), []byte("silence"))
	if err == nil || !strings.Contains(err.Error(), "Transcription failed: no speech") {
		t.Fatalf("err = %v", err)
	}
}

func TestAsk(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, srv.Client())

	r, err := c.Ask(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if r.Transcript != "hello" || r.Response != "Hi!" {
		t.Errorf("reply = %+v", r)
	}
}

func TestFetchAudioWithoutAudio(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)
	if _, err := c.FetchAudio(context.Background(), &assistant.Reply{}); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("err = %v", err)
	}
}

package handler

import (
	"errors"
	"io"
	log "log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"joona/internal/assistant"
	"joona/internal/upload"
)

// VoiceHandler serves the device endpoints.
type VoiceHandler struct {
	assistant *assistant.Assistant
	uploads   *upload.Dir
	ttsDir    string
}

func NewVoiceHandler(a *assistant.Assistant, uploads *upload.Dir, ttsDir string) *VoiceHandler {
	return &VoiceHandler{
		assistant: a,
		uploads:   uploads,
		ttsDir:    ttsDir,
	}
}

// Upload handles POST /upload-audio. The audio comes either as the "audio"
// field of a multipart form or as a raw audio/wav body.
func (h *VoiceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxBytes+1<<20)

	var (
		src io.Reader
		ext = ".wav"
	)

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "multipart/form-data"):
		file, hdr, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No audio file provided")
			return
		}
		defer file.Close()
		src = file
		if e := strings.ToLower(filepath.Ext(hdr.Filename)); e != "" {
			ext = e
		}
	case strings.Contains(contentType, "audio/wav"):
		src = r.Body
	default:
		writeError(w, http.StatusBadRequest, "Unsupported Content-Type")
		return
	}

	name, path, err := h.uploads.Save(src, ext)
	if err != nil {
		if errors.Is(err, upload.ErrTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		log.Error("Saving audio failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info("Audio saved", "file", name)

	reply, err := h.assistant.HandleAudio(r.Context(), name, path)
	if err != nil {
		log.Error("Handling audio failed", "file", name, "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "Transcription failed",
			"details": err.Error(),
		})
		return
	}

	log.Info("Replying", "intent", reply.Intent, "response", reply.Response)
	writeJSON(w, http.StatusOK, reply)
}

// Play handles GET /play-audio/{filename}.
func (h *VoiceHandler) Play(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	path := filepath.Join(h.ttsDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	if strings.EqualFold(filepath.Ext(name), ".wav") {
		w.Header().Set("Content-Type", "audio/wav")
	}
	http.ServeFile(w, r, path)
}

// Ask handles POST /v1/ask: the full reply pipeline for typed text.
func (h *VoiceHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeText(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, h.assistant.Respond(r.Context(), req.Text))
}

package rest

import (
	log "log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"joona/internal/assistant"
	"joona/internal/nlu"
	"joona/internal/reminder"
	"joona/internal/transport/rest/handler"
	"joona/internal/upload"
)

// Container holds all dependencies for the router
type Container struct {
	Assistant  *assistant.Assistant
	Classifier *nlu.Classifier
	Reminders  reminder.Store
	Uploads    *upload.Dir
	TTSDir     string
}

// NewRouter creates the HTTP router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	voiceHandler := handler.NewVoiceHandler(c.Assistant, c.Uploads, c.TTSDir)
	nluHandler := handler.NewNLUHandler(c.Classifier, c.Reminders)

	r.Use(loggingMiddleware)

	// device routes keep their original paths
	r.HandleFunc("/upload-audio", voiceHandler.Upload).Methods("POST")
	r.HandleFunc("/play-audio/{filename}", voiceHandler.Play).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/ask", voiceHandler.Ask).Methods("POST")
	v1.HandleFunc("/classify", nluHandler.Classify).Methods("POST")
	v1.HandleFunc("/reminders", nluHandler.Reminders).Methods("GET")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Info("HTTP",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start).Round(time.Millisecond),
			"remote", r.RemoteAddr,
		)
	})
}

package handler

import (
	"net/http"

	"joona/internal/nlu"
	"joona/internal/reminder"
)

type NLUHandler struct {
	classifier *nlu.Classifier
	reminders  reminder.Store
}

func NewNLUHandler(classifier *nlu.Classifier, reminders reminder.Store) *NLUHandler {
	return &NLUHandler{
		classifier: classifier,
		reminders:  reminders,
	}
}

// Classify handles POST /v1/classify. Only the rule engine runs; nothing
// is stored or spoken.
func (h *NLUHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeText(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, h.classifier.Classify(req.Text))
}

// Reminders handles GET /v1/reminders.
func (h *NLUHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	list := []reminder.Reminder{}
	if h.reminders != nil {
		var err error
		if list, err = h.reminders.List(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"reminders": list})
}

package nlu

import (
	"encoding/json"
	log "log/slog"
	"math/rand/v2"
)

// Result is the structured reading of one utterance.
type Result struct {
	Intent     Intent
	Transcript string
	Response   string

	Device  string
	Task    string
	Time    *string
	Genre   string
	Emotion string
}

func (r Result) Category() Category {
	return r.Intent.Category()
}

type wireResult struct {
	Intent     Intent   `json:"intent"`
	Transcript string   `json:"transcript"`
	Category   Category `json:"category"`
	Response   string   `json:"response"`
	Device     string   `json:"device,omitempty"`
	Task       string   `json:"task,omitempty"`
	Genre      string   `json:"genre,omitempty"`
	Emotion    string   `json:"emotion,omitempty"`
}

// MarshalJSON always writes the derived category; reminder and alarm
// results carry "time" even when it is null.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{
		Intent:     r.Intent,
		Transcript: r.Transcript,
		Category:   r.Category(),
		Response:   r.Response,
		Device:     r.Device,
		Task:       r.Task,
		Genre:      r.Genre,
		Emotion:    r.Emotion,
	}
	if r.Intent.IsReminder() {
		return json.Marshal(struct {
			wireResult
			Time *string `json:"time"`
		}{w, r.Time})
	}
	return json.Marshal(w)
}

// Picker draws a uniform index in [0, n).
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

type Classifier struct {
	rules   []Rule
	phrases Phrases
	picker  Picker
}

type Option func(*Classifier)

func WithPicker(p Picker) Option {
	return func(c *Classifier) { c.picker = p }
}

func WithPhrases(p Phrases) Option {
	return func(c *Classifier) { c.phrases = p }
}

func New(opts ...Option) *Classifier {
	c := &Classifier{
		rules:   defaultRules,
		phrases: DefaultPhrases(),
		picker:  globalPicker{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.phrases.Validate(); err != nil {
		log.Warn("Invalid phrases, using defaults", "err", err)
		c.phrases = DefaultPhrases()
	}
	if c.picker == nil {
		c.picker = globalPicker{}
	}

	return c
}

// Classify never fails: text no rule recognises comes back as IntentUnknown.
func (c *Classifier) Classify(text string) Result {
	for _, rule := range c.rules {
		m, ok := rule.Matcher.Match(text)
		if !ok {
			continue
		}

		res := Result{
			Intent:     rule.Intent,
			Transcript: text,
		}
		rule.Respond(c, m, &res)
		return res
	}

	return Result{
		Intent:     IntentUnknown,
		Transcript: text,
		Response:   unknownResponse,
	}
}

func (c *Classifier) pick(pool []string) string {
	return pool[c.picker.IntN(len(pool))]
}

var defaultClassifier = New()

func Classify(text string) Result {
	return defaultClassifier.Classify(text)
}

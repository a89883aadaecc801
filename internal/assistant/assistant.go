// Package assistant runs one voice request end to end: transcript, intent,
// reply text, speech and reminder bookkeeping.
package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"joona/internal/nlu"
	"joona/internal/reminder"
)

const (
	namePrefix      = "Joona here! "
	dispatchTimeout = 5 * time.Second
)

var ErrTranscription = errors.New("transcription failed")

var questionRe = regexp.MustCompile(`(?i)\b(?:how|what|why|when|where|who|are|is|do|does|did|can|could|would|should)\b`)

// IsQuestion reports whether text contains a question word. Questions go
// to the chat model even when a rule matched.
func IsQuestion(text string) bool {
	return questionRe.MatchString(text)
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

type Chatter interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

// Synthesizer returns the file name of the spoken reply.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

type Classifier interface {
	Classify(text string) nlu.Result
}

type DeviceDispatcher interface {
	Dispatch(ctx context.Context, res nlu.Result) (string, error)
}

type DispatcherFunc func(ctx context.Context, res nlu.Result) (string, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, res nlu.Result) (string, error) {
	return f(ctx, res)
}

// Config wires the collaborators. Transcriber is required; Classifier
// defaults to the built-in rules and everything else is optional.
type Config struct {
	Transcriber Transcriber
	Classifier  Classifier
	Chat        Chatter
	Speech      Synthesizer
	Reminders   reminder.Store
	Devices     DeviceDispatcher
	Picker      nlu.Picker
	Now         func() time.Time
}

type Assistant struct {
	stt       Transcriber
	nlu       Classifier
	chat      Chatter
	speech    Synthesizer
	reminders reminder.Store
	devices   DeviceDispatcher
	picker    nlu.Picker
	now       func() time.Time
}

type randPicker struct{}

func (randPicker) IntN(n int) int { return rand.IntN(n) }

func New(cfg Config) *Assistant {
	a := &Assistant{
		stt:       cfg.Transcriber,
		nlu:       cfg.Classifier,
		chat:      cfg.Chat,
		speech:    cfg.Speech,
		reminders: cfg.Reminders,
		devices:   cfg.Devices,
		picker:    cfg.Picker,
		now:       cfg.Now,
	}
	if a.nlu == nil {
		a.nlu = nlu.New()
	}
	if a.picker == nil {
		a.picker = randPicker{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Reply is what the device gets back for one upload.
type Reply struct {
	Filename      string       `json:"filename"`
	Transcript    string       `json:"transcript"`
	Intent        nlu.Intent   `json:"intent"`
	Category      nlu.Category `json:"category"`
	Time          *string      `json:"time"`
	Response      string       `json:"response"`
	ResponseAudio *string      `json:"response_audio"`
}

// HandleAudio processes the saved upload at path. Only a transcription
// failure is an error; every later step degrades to a usable reply.
func (a *Assistant) HandleAudio(ctx context.Context, filename, path string) (*Reply, error) {
	text, err := a.stt.Transcribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	log.Info("Transcribed", "file", filename, "text", text)

	reply := a.Respond(ctx, text)
	reply.Filename = filename
	return reply, nil
}

// Respond produces the reply for an already transcribed utterance.
func (a *Assistant) Respond(ctx context.Context, text string) *Reply {
	res := a.nlu.Classify(text)
	log.Debug("Classified", "intent", res.Intent, "category", res.Category())

	response := res.Response
	if a.wantsChat(res, text) {
		if answer, err := a.chat.Reply(ctx, text); err != nil {
			log.Warn("Chat failed, using rule response", "err", err)
		} else {
			response = answer
		}
	}
	response = a.maybeAddName(text, response)

	if res.Intent.IsDevice() && a.devices != nil {
		a.dispatch(ctx, res)
	}

	reply := &Reply{
		Transcript: text,
		Intent:     res.Intent,
		Category:   res.Category(),
		Time:       res.Time,
		Response:   response,
	}

	if a.speech != nil {
		if name, err := a.speech.Synthesize(ctx, response); err != nil {
			log.Warn("Speech synthesis failed", "err", err)
		} else if strings.HasSuffix(name, ".wav") {
			audio := "/play-audio/" + name
			reply.ResponseAudio = &audio
		}
	}

	if res.Intent.IsReminder() && a.reminders != nil {
		r := reminder.FromResult(res, response, a.now())
		created, err := a.reminders.Save(ctx, &r)
		switch {
		case err != nil:
			log.Error("Saving reminder failed", "task", r.Task, "err", err)
		case created:
			log.Info("Reminder stored", "task", r.Task, "time", r.Time)
		default:
			log.Info("Reminder already exists", "task", r.Task, "time", r.Time)
		}
	}

	return reply
}

func (a *Assistant) wantsChat(res nlu.Result, text string) bool {
	if a.chat == nil || strings.TrimSpace(text) == "" {
		return false
	}
	return res.Intent == nlu.IntentUnknown || IsQuestion(text)
}

// maybeAddName answers to its name half of the time.
func (a *Assistant) maybeAddName(transcript, response string) string {
	if !strings.Contains(strings.ToLower(transcript), "joona") {
		return response
	}
	if a.picker.IntN(2) == 0 {
		return namePrefix + response
	}
	return response
}

func (a *Assistant) dispatch(ctx context.Context, res nlu.Result) {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	ack, err := a.devices.Dispatch(ctx, res)
	if err != nil {
		log.Warn("Device dispatch failed", "device", res.Device, "err", err)
		return
	}
	log.Info("Device acknowledged", "device", res.Device, "reply", ack)
}

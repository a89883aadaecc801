package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"joona/internal/nlu"
	"joona/internal/reminder"
)

type fakeSTT struct {
	text string
	err  error
}

func (f fakeSTT) Transcribe(context.Context, string) (string, error) { return f.text, f.err }

type fakeChat struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeChat) Reply(_ context.Context, prompt string) (string, error) {
	f.asked = append(f.asked, prompt)
	return f.answer, f.err
}

type fakeSpeech struct {
	name   string
	err    error
	spoken []string
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) (string, error) {
	f.spoken = append(f.spoken, text)
	return f.name, f.err
}

type fixedPicker int

func (p fixedPicker) IntN(n int) int { return int(p) % n }

func newAssistant(text string, chat *fakeChat, speech *fakeSpeech, store reminder.Store) *Assistant {
	cfg := Config{
		Transcriber: fakeSTT{text: text},
		Reminders:   store,
		Picker:      fixedPicker(1),
		Now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	if chat != nil {
		cfg.Chat = chat
	}
	if speech != nil {
		cfg.Speech = speech
	}
	return New(cfg)
}

func TestIsQuestion(t *testing.T) {
	tests := map[string]bool{
		"What time is it":          true,
		"how do I cook rice":       true,
		"Could you help":           true,
		"turn on the lamp":         false,
		"remind me to buy milk":    false,
		"whatever":                 false,
		"this island is beautiful": true,
		"":                         false,
	}
	for text, want := range tests {
		if got := IsQuestion(text); got != want {
			t.Errorf("IsQuestion(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestHandleAudioRuleResponse(t *testing.T) {
	chat := &fakeChat{answer: "should not be used"}
	speech := &fakeSpeech{name: "tts_abcdef12.wav"}
	a := newAssistant("turn on the lamp", chat, speech, nil)

	reply, err := a.HandleAudio(context.Background(), "upload.wav", "/tmp/upload.wav")
	if err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}

	if reply.Filename != "upload.wav" || reply.Transcript != "turn on the lamp" {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Intent != nlu.IntentTurnOnDevice || reply.Category != nlu.CategoryQuery {
		t.Errorf("intent/category = %s/%s", reply.Intent, reply.Category)
	}
	if reply.Response != "Turning on the lamp." {
		t.Errorf("response = %q", reply.Response)
	}
	if reply.ResponseAudio == nil || *reply.ResponseAudio != "/play-audio/tts_abcdef12.wav" {
		t.Errorf("response_audio = %v", reply.ResponseAudio)
	}
	if len(chat.asked) != 0 {
		t.Errorf("chat asked %v", chat.asked)
	}
	if len(speech.spoken) != 1 || speech.spoken[0] != reply.Response {
		t.Errorf("spoken = %v", speech.spoken)
	}
}

func TestHandleAudioChat(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unknown", "the capital of france"},
		{"question over rule", "what is the weather like today"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{answer: "Paris, of course."}
			a := newAssistant(tt.text, chat, nil, nil)

			reply, err := a.HandleAudio(context.Background(), "f.wav", "f.wav")
			if err != nil {
				t.Fatal(err)
			}
			if reply.Response != "Paris, of course." {
				t.Errorf("response = %q", reply.Response)
			}
			if len(chat.asked) != 1 || chat.asked[0] != tt.text {
				t.Errorf("asked = %v", chat.asked)
			}
		})
	}
}

func TestChatFailureFallsBack(t *testing.T) {
	chat := &fakeChat{err: errors.New("503")}
	a := newAssistant("the capital of france", chat, nil, nil)

	reply, err := a.HandleAudio(context.Background(), "f.wav", "f.wav")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != nlu.IntentUnknown || reply.Response != nlu.Classify("").Response {
		t.Errorf("reply = %+v", reply)
	}
}

func TestEmptyTranscriptSkipsChat(t *testing.T) {
	chat := &fakeChat{answer: "x"}
	a := newAssistant("", chat, nil, nil)

	reply, err := a.HandleAudio(context.Background(), "f.wav", "f.wav")
	if err != nil {
		t.Fatal(err)
	}
	if len(chat.asked) != 0 || reply.Intent != nlu.IntentUnknown {
		t.Errorf("reply = %+v, asked = %v", reply, chat.asked)
	}
}

func TestTranscriptionError(t *testing.T) {
	a := New(Config{Transcriber: fakeSTT{err: errors.New("upload refused")}})

	_, err := a.HandleAudio(context.Background(), "f.wav", "f.wav")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
}

func TestMaybeAddName(t *testing.T) {
	heads := New(Config{Transcriber: fakeSTT{}, Picker: fixedPicker(0)})
	tails := New(Config{Transcriber: fakeSTT{}, Picker: fixedPicker(1)})

	if got := heads.maybeAddName("hey JOONA", "Hi!"); got != "Joona here! Hi!" {
		t.Errorf("heads = %q", got)
	}
	if got := tails.maybeAddName("hey joona", "Hi!"); got != "Hi!" {
		t.Errorf("tails = %q", got)
	}
	if got := heads.maybeAddName("hey jonah", "Hi!"); got != "Hi!" {
		t.Errorf("no name = %q", got)
	}
}

func TestSpeechFailureLeavesAudioNull(t *testing.T) {
	speech := &fakeSpeech{err: errors.New("quota")}
	a := newAssistant("tell me a joke", nil, speech, nil)

	reply, err := a.HandleAudio(context.Background(), "f.wav", "f.wav")
	if err != nil {
		t.Fatal(err)
	}
	if reply.ResponseAudio != nil {
		t.Errorf("response_audio = %q", *reply.ResponseAudio)
	}

	data, _ := json.Marshal(reply)
	var wire map[string]any
	json.Unmarshal(data, &wire)
	if v, ok := wire["response_audio"]; !ok || v != nil {
		t.Errorf("response_audio on the wire = %v (present %v)", v, ok)
	}
	if v, ok := wire["time"]; !ok || v != nil {
		t.Errorf("time on the wire = %v (present %v)", v, ok)
	}
}

func TestRemindersStoredOnce(t *testing.T) {
	store := reminder.NewMemoryStore()
	ctx := context.Background()

	for range 2 {
		a := newAssistant("remind me to buy milk at 5 PM", nil, nil, store)
		reply, err := a.HandleAudio(ctx, "f.wav", "f.wav")
		if err != nil {
			t.Fatal(err)
		}
		if reply.Time == nil || *reply.Time != "5 PM" {
			t.Errorf("time = %v", reply.Time)
		}
	}

	all, _ := store.List(ctx)
	if len(all) != 1 {
		t.Fatalf("stored %d reminders, want 1", len(all))
	}
	r := all[0]
	if r.Task != "buy milk" || r.Time != "5pm" || r.Intent != nlu.IntentSetReminderFull {
		t.Errorf("stored %+v", r)
	}
	if r.Response != "Reminder set for: 'buy milk' at 5 PM." {
		t.Errorf("stored response %q", r.Response)
	}
}

func TestNonTaskNotStored(t *testing.T) {
	store := reminder.NewMemoryStore()
	a := newAssistant("hello there", nil, nil, store)
	if _, err := a.HandleAudio(context.Background(), "f.wav", "f.wav"); err != nil {
		t.Fatal(err)
	}
	if all, _ := store.List(context.Background()); len(all) != 0 {
		t.Errorf("stored %v", all)
	}
}

func TestDeviceDispatch(t *testing.T) {
	var got []nlu.Result
	devices := DispatcherFunc(func(ctx context.Context, res nlu.Result) (string, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("dispatch without deadline")
		}
		got = append(got, res)
		return "JOONA:OK:LAMP:VERTEX", nil
	})

	a := New(Config{Transcriber: fakeSTT{text: "switch off the lamp"}, Devices: devices})
	reply, err := a.HandleAudio(context.Background(), "f.wav", "f.wav")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Device != "lamp" || got[0].Intent != nlu.IntentTurnOffDevice {
		t.Fatalf("dispatched %+v", got)
	}
	if reply.Response != "Turning off the lamp." {
		t.Errorf("response = %q", reply.Response)
	}

	failing := New(Config{
		Transcriber: fakeSTT{text: "turn on the fan"},
		Devices: DispatcherFunc(func(context.Context, nlu.Result) (string, error) {
			return "", errors.New("hub offline")
		}),
	})
	if _, err := failing.HandleAudio(context.Background(), "f.wav", "f.wav"); err != nil {
		t.Fatalf("dispatch failure should not fail the request: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"joona/internal/assistant"
	"joona/internal/audio"
	"joona/internal/bus"
	"joona/internal/client"
	"joona/internal/ipc"
	"joona/internal/notify"
	"joona/internal/proxy"
	"joona/internal/tts"
	"joona/pkg/audioconv"
)

const (
	agentName       = "joona-agent"
	offlineResponse = "Sorry, I can't reach my server right now."
	requestTimeout  = 90 * time.Second
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

var errBusy = errors.New("already listening")

type agent struct {
	rec    *audio.Recorder
	ducker *audio.Ducker
	server *client.Client
	beep   string
	lang   string
	busy   atomic.Bool
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	serverURL := cli.StringP("server", "s", "", "Joona server URL (default $JOONA_SERVER or http://localhost:5000)")
	socket := cli.String("socket", ipc.DefaultSocketPath, "Control socket path")
	busURL := cli.StringP("bus", "b", "", "Websocket bus URL for reminder announcements (default $BUS_URL)")
	beepPath := cli.String("beep", "beep.mp3", "Listening cue")
	lang := cli.String("lang", "en", "Offline voice language")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	if *serverURL == "" {
		*serverURL = os.Getenv("JOONA_SERVER")
	}
	if *serverURL == "" {
		*serverURL = "http://localhost:5000"
	}
	if *busURL == "" {
		*busURL = os.Getenv("BUS_URL")
	}

	httpClient, err := proxy.NewClient(*proxyAddr)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
		os.Exit(1)
	}

	rec := audio.NewRecorder(audio.DefaultVAD)
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	a := &agent{
		rec:    rec,
		ducker: audio.NewDucker([]string{agentName}, 15),
		server: client.New(*serverURL, httpClient),
		beep:   *beepPath,
		lang:   *lang,
	}

	if *busURL != "" {
		b, err := bus.NewBus(*busURL)
		if err != nil {
			log.Error("Failed to connect to bus", "url", *busURL, "err", err)
			os.Exit(1)
		}
		defer b.Close()
		go a.listenBus(b)
	}

	ln, err := ipc.StartServer(*socket, func(msg ipc.ControlMessage) error {
		switch msg.Cmd {
		case ipc.CmdTrigger:
			return a.run(a.handleTrigger)
		case ipc.CmdAsk:
			return a.run(func(ctx context.Context) error { return a.handleAsk(ctx, msg.Text) })
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return fmt.Errorf("unknown command %q", msg.Cmd)
		}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer ln.Close()

	log.Info("Boot up - successful", "server", *serverURL, "socket", *socket)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")
}

// run starts f in the background unless a request is already in flight.
func (a *agent) run(f func(context.Context) error) error {
	if !a.busy.CompareAndSwap(false, true) {
		return errBusy
	}

	go func() {
		defer a.busy.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if err := f(ctx); err != nil {
			log.Error("Request failed", "err", err)
		}
	}()
	return nil
}

func (a *agent) handleTrigger(ctx context.Context) error {
	if err := notify.Beep(a.beep); err != nil {
		log.Warn("No beep", "err", err)
	}
	notify.Desktop("Listening...", "")

	if err := a.ducker.DuckOthers(ctx, 0.3, 200*time.Millisecond); err != nil {
		log.Warn("Failed to duck other streams", "err", err)
	}
	defer a.ducker.UnduckOthers(context.Background(), 400*time.Millisecond)

	log.Info("Starting listening")

	pcm, err := a.rec.RecordAuto()
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	log.Info("Recorded", "samples", len(pcm))

	wav, err := encodeWAV(pcm)
	if err != nil {
		return err
	}

	reply, err := a.server.Upload(ctx, wav)
	if err != nil {
		log.Error("Server unavailable", "err", err)
		return a.speakOffline(offlineResponse)
	}

	return a.answer(ctx, reply)
}

func (a *agent) handleAsk(ctx context.Context, text string) error {
	reply, err := a.server.Ask(ctx, text)
	if err != nil {
		log.Error("Server unavailable", "err", err)
		return a.speakOffline(offlineResponse)
	}
	return a.answer(ctx, reply)
}

func (a *agent) answer(ctx context.Context, reply *assistant.Reply) error {
	log.Info("──────── JOONA ────────")
	log.Info("heard:    " + reply.Transcript)
	log.Info("intent:   " + string(reply.Intent))
	if reply.Time != nil {
		log.Info("time:     " + *reply.Time)
	}
	log.Info("response: " + reply.Response)
	log.Info("───────────────────────")

	notify.Desktop("Joona", reply.Response)

	stream, err := a.server.FetchAudio(ctx, reply)
	if err != nil {
		log.Warn("No reply audio, speaking locally", "err", err)
		return a.speakOffline(reply.Response)
	}
	if err := notify.PlayWAV(stream); err != nil {
		log.Warn("Failed to play reply", "err", err)
		return a.speakOffline(reply.Response)
	}
	return nil
}

func (a *agent) speakOffline(text string) error {
	if err := tts.Speak(text, a.lang); err != nil {
		return fmt.Errorf("voice out: %w", err)
	}
	return nil
}

func (a *agent) listenBus(b *bus.Bus) {
	for {
		m, err := b.Read()
		if errors.Is(err, bus.ErrBadMessage) {
			log.Warn("Skipping bus message", "err", err)
			continue
		}
		if err != nil {
			log.Warn("Bus closed", "err", err)
			return
		}
		if m.Kind != bus.KindReminder || !m.For(agentName) {
			continue
		}

		log.Info("Reminder", "text", m.Content)
		notify.Desktop("Reminder", m.Content)
		if err := a.speakOffline(m.Content); err != nil {
			log.Error("Failed to announce reminder", "err", err)
		}
	}
}

// encodeWAV goes through a temp file because the encoder needs to seek.
func encodeWAV(pcm []float32) ([]byte, error) {
	f, err := os.CreateTemp("", "joona-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := audioconv.EncodeWAV(f, pcm); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return os.ReadFile(f.Name())
}

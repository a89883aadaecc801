package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"joona/internal/assembly"
	"joona/internal/assistant"
	"joona/internal/bus"
	"joona/internal/chat"
	"joona/internal/config"
	"joona/internal/gtts"
	"joona/internal/nlu"
	"joona/internal/proxy"
	"joona/internal/reminder"
	"joona/internal/transport/rest"
	"joona/internal/upload"
	"joona/pkg/protocol"
	"joona/pkg/stt"
)

const shard = "JOONA"

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address, overrides SOCKS_PROXY")
	addr := cli.StringP("addr", "a", "", "Listen address, overrides JOONA_ADDR")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[*logLevel],
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	httpClient, err := proxy.NewClient(cfg.Proxy)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	transcriber, closeSTT, err := newTranscriber(cfg, httpClient)
	if err != nil {
		log.Error("Failed to init transcription", "backend", cfg.STTBackend, "err", err)
		os.Exit(1)
	}
	defer closeSTT()
	log.Debug("Loaded transcriber", "backend", cfg.STTBackend)

	classifier := nlu.New()
	if cfg.PhrasesFile != "" {
		phrases, err := nlu.LoadPhrases(cfg.PhrasesFile)
		if err != nil {
			log.Error("Failed to load phrases", "err", err)
			os.Exit(1)
		}
		classifier = nlu.New(nlu.WithPhrases(phrases))
	}

	if err := os.MkdirAll(cfg.TTSDir, 0o755); err != nil {
		log.Error("Failed to create tts dir", "err", err)
		os.Exit(1)
	}
	uploads, err := upload.NewDir(cfg.UploadDir)
	if err != nil {
		log.Error("Failed to create upload dir", "err", err)
		os.Exit(1)
	}

	store, ledger, cleanup := connectStorage(ctx, cfg)
	defer cleanup()

	asstCfg := assistant.Config{
		Transcriber: transcriber,
		Classifier:  classifier,
		Speech:      gtts.NewSynthesizer(cfg.TTSDir, cfg.TTSLang, "", httpClient),
		Reminders:   store,
	}
	if cfg.ChatEnabled() {
		asstCfg.Chat = chat.NewClient(chat.Config{
			APIKey:  cfg.OpenRouterKey,
			BaseURL: cfg.OpenRouterURL,
			Model:   cfg.ChatModel,
			Referer: cfg.ChatReferer,
			Title:   cfg.ChatTitle,
		}, httpClient)
	} else {
		log.Warn("OPENROUTER_API_KEY not set, questions get rule responses only")
	}

	if cfg.DeviceHubURL != "" {
		hub, err := protocol.Dial(protocol.Config{
			Shard:      shard,
			URL:        cfg.DeviceHubURL,
			RetryEvery: 5 * time.Second,
			OnEvent: func(f *protocol.Frame) {
				log.Info("Hub event", "frame", f.String())
			},
		})
		if err != nil {
			log.Error("Failed to connect device hub", "url", cfg.DeviceHubURL, "err", err)
			os.Exit(1)
		}
		defer hub.Close()
		go hub.Run()

		asstCfg.Devices = assistant.DispatcherFunc(func(ctx context.Context, res nlu.Result) (string, error) {
			return nlu.Dispatch(ctx, res, hub)
		})
	}

	var notifier reminder.Notifier
	if cfg.BusURL != "" {
		b, err := bus.NewBus(cfg.BusURL)
		if err != nil {
			log.Error("Failed to connect to bus", "url", cfg.BusURL, "err", err)
			os.Exit(1)
		}
		defer b.Close()
		go drainBus(b)

		notifier = reminder.NotifierFunc(func(_ context.Context, r reminder.Reminder) error {
			return b.Publish(shard, bus.KindReminder, r.Response)
		})
	}

	loc, err := reminder.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("Bad timezone", "err", err)
		os.Exit(1)
	}
	scanner := reminder.NewScanner(store, ledger, notifier, loc)
	if err := scanner.Start(); err != nil {
		log.Error("Failed to start reminder scanner", "err", err)
		os.Exit(1)
	}

	router := rest.NewRouter(&rest.Container{
		Assistant:  assistant.New(asstCfg),
		Classifier: classifier,
		Reminders:  store,
		Uploads:    uploads,
		TTSDir:     cfg.TTSDir,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Boot up - successful", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ListenAndServe failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", "err", err)
	}
	<-scanner.Stop().Done()

	log.Info("Server exited")
}

func newTranscriber(cfg config.Config, httpClient *http.Client) (assistant.Transcriber, func(), error) {
	if cfg.STTBackend == config.STTWhisper {
		w, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{Language: "en"})
		if err != nil {
			return nil, nil, err
		}
		return w, func() { w.Close() }, nil
	}
	return assembly.NewClient(cfg.AssemblyKey, cfg.AssemblyURL, httpClient), func() {}, nil
}

// connectStorage falls back to process memory for whatever is not configured.
func connectStorage(ctx context.Context, cfg config.Config) (reminder.Store, reminder.Ledger, func()) {
	var (
		store    = reminder.NewMemoryStore()
		ledger   = reminder.NewMemoryLedger()
		closers  []func()
		pingWait = 5 * time.Second
	)

	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Error("Failed to connect to MongoDB", "err", err)
			os.Exit(1)
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingWait)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			log.Error("Failed to ping MongoDB", "err", err)
			os.Exit(1)
		}

		store, err = reminder.NewMongoStore(pingCtx, client.Database(cfg.MongoDB))
		if err != nil {
			log.Error("Failed to prepare reminders collection", "err", err)
			os.Exit(1)
		}
		closers = append(closers, func() { client.Disconnect(context.Background()) })
		log.Info("Connected to MongoDB", "db", cfg.MongoDB)
	} else {
		log.Warn("MONGO_URI not set, reminders are kept in memory")
	}

	if cfg.RedisURL != "" {
		opt, err := cfg.RedisOptions()
		if err != nil {
			log.Error("Bad Redis URI", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(ctx, pingWait)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Error("Failed to ping Redis", "err", err)
			os.Exit(1)
		}

		ledger = reminder.NewRedisLedger(rdb)
		closers = append(closers, func() { rdb.Close() })
		log.Info("Connected to Redis", "addr", opt.Addr, "db", opt.DB)
	}

	return store, ledger, func() {
		for _, c := range closers {
			c()
		}
	}
}

// drainBus keeps the connection serviced; the server only publishes.
func drainBus(b *bus.Bus) {
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
		if m.For(shard) {
			log.Debug("Bus message", "from", m.From, "kind", m.Kind)
		}
	}
}

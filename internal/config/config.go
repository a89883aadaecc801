// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const (
	STTAssemblyAI = "assemblyai"
	STTWhisper    = "whisper"
)

type Config struct {
	Addr      string
	UploadDir string
	TTSDir    string
	TTSLang   string

	STTBackend   string
	AssemblyKey  string
	AssemblyURL  string
	WhisperModel string

	OpenRouterKey string
	OpenRouterURL string
	ChatModel     string
	ChatReferer   string
	ChatTitle     string

	MongoURI  string
	MongoDB   string
	RedisURL  string

	BusURL       string
	DeviceHubURL string
	Proxy        string
	Timezone     string
	PhrasesFile  string
}

// Load reads envFile when it exists, then the process environment. Values
// already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Addr:      getEnv("JOONA_ADDR", ":5000"),
		UploadDir: getEnv("UPLOAD_FOLDER", "uploads"),
		TTSDir:    getEnv("TTS_FOLDER", "tts_audio"),
		TTSLang:   getEnv("TTS_LANG", "en"),

		STTBackend:   strings.ToLower(getEnv("STT_BACKEND", STTAssemblyAI)),
		AssemblyKey:  os.Getenv("ASSEMBLYAI_API_KEY"),
		AssemblyURL:  getEnv("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com"),
		WhisperModel: getEnv("WHISPER_MODEL", "third_party/whisper.cpp/models/ggml-base.en.bin"),

		OpenRouterKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		ChatModel:     getEnv("CHAT_MODEL", "google/gemini-2.0-flash-001"),
		ChatReferer:   getEnv("CHAT_REFERER", "http://localhost:5000"),
		ChatTitle:     getEnv("CHAT_TITLE", "Joona-Backend"),

		MongoURI:  os.Getenv("MONGO_URI"),
		MongoDB:   getEnv("MONGO_DB", "joona"),
		RedisURL:  os.Getenv("REDIS_URI"),

		BusURL:       os.Getenv("BUS_URL"),
		DeviceHubURL: os.Getenv("DEVICE_HUB_URL"),
		Proxy:        os.Getenv("SOCKS_PROXY"),
		Timezone:     getEnv("JOONA_TZ", "Asia/Karachi"),
		PhrasesFile:  os.Getenv("PHRASES_FILE"),
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.STTBackend {
	case STTAssemblyAI:
		if c.AssemblyKey == "" {
			return errors.New("ASSEMBLYAI_API_KEY not set")
		}
	case STTWhisper:
		if c.WhisperModel == "" {
			return errors.New("WHISPER_MODEL not set")
		}
	default:
		return fmt.Errorf("unknown STT_BACKEND %q", c.STTBackend)
	}
	if c.RedisURL != "" {
		if _, err := c.RedisOptions(); err != nil {
			return err
		}
	}
	return nil
}

// RedisOptions parses REDIS_URI. A bare host:port is accepted too.
func (c Config) RedisOptions() (*redis.Options, error) {
	uri := c.RedisURL
	if !strings.Contains(uri, "://") {
		uri = "redis://" + uri
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("bad REDIS_URI: %w", err)
	}
	return opt, nil
}

// ChatEnabled reports whether free-form questions can be answered.
func (c Config) ChatEnabled() bool {
	return c.OpenRouterKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

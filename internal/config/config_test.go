package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ASSEMBLYAI_API_KEY", "k")
	t.Setenv("STT_BACKEND", "")
	t.Setenv("REDIS_URI", "redis://cache:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":5000" || cfg.STTBackend != STTAssemblyAI || cfg.Timezone != "Asia/Karachi" {
		t.Errorf("cfg = %+v", cfg)
	}
	opt, err := cfg.RedisOptions()
	if err != nil {
		t.Fatalf("RedisOptions: %v", err)
	}
	if opt.Addr != "cache:6379" || opt.DB != 0 {
		t.Errorf("redis = %s db %d", opt.Addr, opt.DB)
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		addr     string
		password string
		db       int
		tls      bool
	}{
		{"bare address", "cache:6379", "cache:6379", "", 0, false},
		{"password and db", "redis://:secret@cache:6379/2", "cache:6379", "secret", 2, false},
		{"user", "redis://joona:pw@cache:6380/0", "cache:6380", "pw", 0, false},
		{"tls", "rediss://cache:6379/1", "cache:6379", "", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := Config{RedisURL: tt.uri}.RedisOptions()
			if err != nil {
				t.Fatalf("RedisOptions: %v", err)
			}
			if opt.Addr != tt.addr || opt.Password != tt.password || opt.DB != tt.db {
				t.Errorf("got addr %q password %q db %d", opt.Addr, opt.Password, opt.DB)
			}
			if (opt.TLSConfig != nil) != tt.tls {
				t.Errorf("tls = %v", opt.TLSConfig != nil)
			}
		})
	}
}

func TestValidateRejectsBadRedisURI(t *testing.T) {
	cfg := Config{STTBackend: STTAssemblyAI, AssemblyKey: "k", RedisURL: "redis://cache:6379/notadb"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad db index")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"STT_BACKEND=Whisper",
		"WHISPER_MODEL=/models/tiny.bin",
		"OPENROUTER_API_KEY=or-key",
		"JOONA_ADDR=:9000",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// godotenv does not override variables that are already set
	t.Setenv("JOONA_ADDR", ":7000")
	for _, k := range []string{"STT_BACKEND", "WHISPER_MODEL", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STTBackend != STTWhisper || cfg.WhisperModel != "/models/tiny.bin" {
		t.Errorf("stt = %s %s", cfg.STTBackend, cfg.WhisperModel)
	}
	if !cfg.ChatEnabled() {
		t.Error("chat should be enabled")
	}
	if cfg.Addr != ":7000" {
		t.Errorf("Addr = %q, environment should win", cfg.Addr)
	}
}

func TestMissingEnvFileIsFine(t *testing.T) {
	t.Setenv("ASSEMBLYAI_API_KEY", "k")
	t.Setenv("STT_BACKEND", "")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"assembly with key", Config{STTBackend: STTAssemblyAI, AssemblyKey: "k"}, true},
		{"assembly without key", Config{STTBackend: STTAssemblyAI}, false},
		{"whisper", Config{STTBackend: STTWhisper, WhisperModel: "m.bin"}, true},
		{"unknown backend", Config{STTBackend: "vosk"}, false},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: err = %v", tt.name, err)
		}
	}
}

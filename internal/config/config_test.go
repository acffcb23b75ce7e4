package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leofalp/nodeflow/core/engine"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if *cfg != Default() {
		t.Fatalf("config = %+v, want defaults %+v", *cfg, Default())
	}
	if cfg.HandlerTimeout != engine.DefaultHandlerTimeout || cfg.Addr != DefaultAddr {
		t.Fatalf("unexpected defaults %+v", *cfg)
	}
}

func TestFromEnv_Values(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		EnvAddr:              "127.0.0.1:9000",
		EnvHandlerTimeout:    "90",
		EnvFanOutConcurrency: "2",
		EnvReplayBuffer:      " 16 ",
		EnvJobRetention:      "1h",
		EnvDatabaseURL:       "postgres://localhost/nodeflow",
		EnvFormsAPIURL:       "http://forms",
		EnvDocumentsAPIURL:   "http://documents",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	want := Config{
		Addr:              "127.0.0.1:9000",
		HandlerTimeout:    90 * time.Second,
		FanOutConcurrency: 2,
		ReplayBuffer:      16,
		JobRetention:      time.Hour,
		DatabaseURL:       "postgres://localhost/nodeflow",
		FormsAPIURL:       "http://forms",
		DocumentsAPIURL:   "http://documents",
	}
	if *cfg != want {
		t.Fatalf("config = %+v, want %+v", *cfg, want)
	}
	if got := len(cfg.EngineOptions()); got != 4 {
		t.Fatalf("expected 4 engine options, got %d", got)
	}
}

func TestFromEnv_ZeroTimeoutDisables(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{EnvHandlerTimeout: "0s"}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HandlerTimeout != 0 {
		t.Fatalf("HandlerTimeout = %v, want 0", cfg.HandlerTimeout)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", EnvHandlerTimeout, "soon"},
		{"negative seconds", EnvJobRetention, "-5"},
		{"negative duration", EnvJobRetention, "-5m"},
		{"zero workers", EnvFanOutConcurrency, "0"},
		{"not a number", EnvReplayBuffer, "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(lookupFrom(map[string]string{tt.key: tt.val}))
			if !errors.Is(err, ErrInvalidValue) {
				t.Fatalf("expected ErrInvalidValue, got %v", err)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	content := EnvAddr + "=:7070\n" + EnvReplayBuffer + "=8\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("writing env file: %v", err)
	}
	// The process environment wins over the file.
	t.Setenv(EnvReplayBuffer, "32")
	// godotenv sets variables it loads; register them for cleanup.
	t.Setenv(EnvAddr, "")
	if err := os.Unsetenv(EnvAddr); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("Addr = %q, want :7070", cfg.Addr)
	}
	if cfg.ReplayBuffer != 32 {
		t.Fatalf("ReplayBuffer = %d, want 32", cfg.ReplayBuffer)
	}
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/leofalp/nodeflow/core/engine"
)

// Environment variable names.
const (
	EnvAddr              = "NODEFLOW_ADDR"
	EnvHandlerTimeout    = "NODEFLOW_HANDLER_TIMEOUT"
	EnvFanOutConcurrency = "NODEFLOW_FANOUT_CONCURRENCY"
	EnvReplayBuffer      = "NODEFLOW_REPLAY_BUFFER"
	EnvJobRetention      = "NODEFLOW_JOB_RETENTION"
	EnvDatabaseURL       = "NODEFLOW_DATABASE_URL"
	EnvFormsAPIURL       = "NODEFLOW_FORMS_API_URL"
	EnvDocumentsAPIURL   = "NODEFLOW_DOCUMENTS_API_URL"
)

// DefaultAddr is the listen address used when NODEFLOW_ADDR is unset.
const DefaultAddr = ":8080"

// ErrInvalidValue is returned when a variable cannot be parsed.
var ErrInvalidValue = errors.New("config: invalid value")

// Config holds the daemon settings.
type Config struct {
	Addr              string
	HandlerTimeout    time.Duration
	FanOutConcurrency int
	ReplayBuffer      int
	JobRetention      time.Duration
	DatabaseURL       string
	FormsAPIURL       string
	DocumentsAPIURL   string
}

// Default returns the settings used for unset variables.
func Default() Config {
	return Config{
		Addr:              DefaultAddr,
		HandlerTimeout:    engine.DefaultHandlerTimeout,
		FanOutConcurrency: engine.DefaultFanOutConcurrency,
		ReplayBuffer:      engine.DefaultReplayBuffer,
		JobRetention:      engine.DefaultJobRetention,
	}
}

// Load reads the given dotenv files, ".env" when none is given, and then
// the environment. Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", file, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default.
func FromEnv(lookup func(key string) (string, bool)) (*Config, error) {
	cfg := Default()
	var errs []error

	stringVar(lookup, EnvAddr, &cfg.Addr)
	stringVar(lookup, EnvDatabaseURL, &cfg.DatabaseURL)
	stringVar(lookup, EnvFormsAPIURL, &cfg.FormsAPIURL)
	stringVar(lookup, EnvDocumentsAPIURL, &cfg.DocumentsAPIURL)

	errs = append(errs,
		durationVar(lookup, EnvHandlerTimeout, &cfg.HandlerTimeout),
		durationVar(lookup, EnvJobRetention, &cfg.JobRetention),
		positiveIntVar(lookup, EnvFanOutConcurrency, &cfg.FanOutConcurrency),
		positiveIntVar(lookup, EnvReplayBuffer, &cfg.ReplayBuffer),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EngineOptions translates the settings into engine options.
func (cfg *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithHandlerTimeout(cfg.HandlerTimeout),
		engine.WithFanOutConcurrency(cfg.FanOutConcurrency),
		engine.WithReplayBuffer(cfg.ReplayBuffer),
		engine.WithJobRetention(cfg.JobRetention),
	}
}

func stringVar(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

// durationVar accepts Go durations ("90s") and bare seconds ("90").
func durationVar(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return fmt.Errorf("%w: %s=%q must not be negative", ErrInvalidValue, key, value)
		}
		*target = time.Duration(seconds) * time.Second
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidValue, key, value)
	}
	*target = parsed
	return nil
}

func positiveIntVar(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fmt.Errorf("%w: %s=%q must be a positive integer", ErrInvalidValue, key, value)
	}
	*target = parsed
	return nil
}

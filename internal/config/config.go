package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderVader  = "vader"
)

// Config stores runtime configuration.
type Config struct {
	Analysis  AnalysisConfig
	Deepgram  DeepgramConfig
	Audio     AudioConfig
	Rules     RulesConfig
	Dictation DictationConfig
	LogLevel  string
	// EnvFile is the env file that was loaded, if any.
	EnvFile string
}

type AnalysisConfig struct {
	Provider string
	// Timeout bounds one analysis call. Zero means no timeout.
	Timeout time.Duration
	Gemini  GeminiConfig
	OpenAI  OpenAIConfig
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type DictationConfig struct {
	ChunkSize       int
	StopGrace       time.Duration
	NoticeTTL       time.Duration
	NoSpeechTimeout time.Duration
}

// Load reads the optional env file, then resolves configuration from
// environment variables and defaults.
func Load() (Config, error) {
	envFile, err := loadEnvFile(envOrDefault("ESIE_ENV_FILE", ".env"))
	if err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Config{
		Analysis: AnalysisConfig{
			Provider: strings.ToLower(envOrDefault("ESIE_ANALYSIS_PROVIDER", ProviderGemini)),
			Timeout:  envOrDefaultMillis("ESIE_ANALYSIS_TIMEOUT_MS", 0),
			Gemini: GeminiConfig{
				APIKey:  firstNonEmpty(os.Getenv("API_KEY"), os.Getenv("GEMINI_API_KEY")),
				Model:   envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
				BaseURL: strings.TrimSpace(os.Getenv("GEMINI_API_BASE")),
			},
			OpenAI: OpenAIConfig{
				APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
				Model:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: strings.TrimSpace(os.Getenv("OPENAI_API_BASE")),
			},
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    envOrDefault("DEEPGRAM_LANGUAGE", "en-US"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("ESIE_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("ESIE_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("ESIE_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("ESIE_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("ESIE_CHANNELS", 1),
		},
		Rules: RulesConfig{
			Path:           envOrDefault("ESIE_RULES_FILE", filepath.Join(home, ".config", "esie", "dictation.rules")),
			IterationLimit: envOrDefaultInt("ESIE_RULE_ITERATION_LIMIT", 30),
		},
		Dictation: DictationConfig{
			ChunkSize:       envOrDefaultInt("ESIE_AUDIO_CHUNK_SIZE", 4096),
			StopGrace:       envOrDefaultMillis("ESIE_STOP_GRACE_MS", 500),
			NoticeTTL:       envOrDefaultMillis("ESIE_NOTICE_TTL_MS", 4000),
			NoSpeechTimeout: envOrDefaultMillis("ESIE_NO_SPEECH_TIMEOUT_MS", 8000),
		},
		LogLevel: strings.ToLower(envOrDefault("ESIE_LOG_LEVEL", "info")),
		EnvFile:  envFile,
	}

	switch cfg.Analysis.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderVader:
	default:
		return Config{}, fmt.Errorf("unsupported ESIE_ANALYSIS_PROVIDER %q", cfg.Analysis.Provider)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Dictation.ChunkSize < 256 {
		cfg.Dictation.ChunkSize = 4096
	}
	if cfg.Dictation.NoticeTTL <= 0 {
		cfg.Dictation.NoticeTTL = 4 * time.Second
	}

	return cfg, nil
}

// loadEnvFile loads path without overriding variables that are already set.
// A missing file is not an error.
func loadEnvFile(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err := gotenv.Load(path); err != nil {
		return "", fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return path, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envOrDefaultMillis reads a non-negative millisecond count.
func envOrDefaultMillis(key string, fallback int) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}

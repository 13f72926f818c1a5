package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"esie/internal/analysis"
	"esie/internal/audio"
	"esie/internal/config"
	"esie/internal/logging"
	"esie/internal/ports"
	"esie/internal/providers/deepgram"
	"esie/internal/providers/gemini"
	"esie/internal/providers/openai"
	"esie/internal/providers/vader"
	"esie/internal/rules"
	"esie/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Dictation    *usecase.DictationController
	Orchestrator *usecase.SubmissionOrchestrator
	Analyzer     *analysis.Client
	Config       config.Config
	Logger       *slog.Logger
}

// Build wires all backend dependencies for the current runtime. A missing
// analysis credential is not an error: the analyzer then reports
// "API Key not configured" for every submission.
func Build(ctx context.Context, eventSink ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logger := logging.Init(logging.ParseLevel(cfg.LogLevel))
	if cfg.EnvFile != "" {
		logger.Debug("loaded env file", slog.String("path", cfg.EnvFile))
	}

	rulesEngine, err := loadRules(cfg.Rules)
	if err != nil {
		logger.Warn("dictation rules disabled", slog.String("path", cfg.Rules.Path), slog.Any("error", err))
	}

	generator, err := newGenerator(ctx, cfg.Analysis)
	switch {
	case errors.Is(err, gemini.ErrMissingAPIKey), errors.Is(err, openai.ErrMissingAPIKey):
		logger.Warn("analysis credential missing; submissions will not be analyzed",
			slog.String("provider", cfg.Analysis.Provider))
		generator = nil
	case err != nil:
		return Services{}, err
	default:
		logger.Info("analysis backend ready", slog.String("generator", generator.Name()))
	}
	analyzer := analysis.NewClient(generator, logger)

	dictation := usecase.NewDictationController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}),
		rulesEngine,
		eventSink,
		logger,
		usecase.DictationConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate: cfg.Audio.SampleRate,
				Channels:   cfg.Audio.Channels,
				Encoding:   "linear16",
			},
			ChunkSize:       cfg.Dictation.ChunkSize,
			NoticeTTL:       cfg.Dictation.NoticeTTL,
			NoSpeechTimeout: cfg.Dictation.NoSpeechTimeout,
			StopGrace:       cfg.Dictation.StopGrace,
		},
	)

	orchestrator := usecase.NewSubmissionOrchestrator(analyzer, clipboard, eventSink, logger)

	return Services{
		Dictation:    dictation,
		Orchestrator: orchestrator,
		Analyzer:     analyzer,
		Config:       cfg,
		Logger:       logger,
	}, nil
}

// loadRules returns a nil engine, not a typed nil, when the file is invalid,
// so utterances pass through unchanged.
func loadRules(cfg config.RulesConfig) (ports.RulesEngine, error) {
	engine, err := rules.NewEngine(cfg.Path, cfg.IterationLimit)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func newGenerator(ctx context.Context, cfg config.AnalysisConfig) (ports.TextGenerator, error) {
	switch cfg.Provider {
	case config.ProviderVader:
		return vader.NewGenerator(vader.DefaultThreshold), nil
	case config.ProviderOpenAI:
		g, err := openai.NewGenerator(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		g, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

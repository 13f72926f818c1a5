package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"esie/internal/analysis"
	"esie/internal/bootstrap"
	"esie/internal/config"
	"esie/internal/domain"
	"esie/internal/usecase"
)

const (
	eventDictation  = "esie:dictation"
	eventTranscript = "esie:transcript"
	eventAnalysis   = "esie:analysis"
)

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	dictation    *usecase.DictationController
	orchestrator *usecase.SubmissionOrchestrator
	analyzer     *analysis.Client
	cfg          config.Config
	logger       *slog.Logger
	bootErr      error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit, logger: slog.Default()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.logger.Error("startup failed", slog.Any("error", err))
		a.DictationChanged(a.GetDictationStatus())
		return
	}

	a.cfg = services.Config
	a.logger = services.Logger
	a.dictation = services.Dictation
	a.orchestrator = services.Orchestrator
	a.analyzer = services.Analyzer
	a.DictationChanged(a.dictation.Status())
	a.AnalysisChanged(a.orchestrator.Snapshot())
}

// shutdown tears down any live recognition session.
func (a *App) shutdown(_ context.Context) {
	if a.dictation != nil {
		a.dictation.Close()
	}
}

// StartDictation begins voice input.
func (a *App) StartDictation() (domain.DictationStatus, error) {
	if err := a.requireReady(); err != nil {
		return a.GetDictationStatus(), err
	}
	return a.dictation.StartListening(a.ctx), nil
}

// StopDictation ends voice input after merging pending utterances.
func (a *App) StopDictation() (domain.DictationStatus, error) {
	if err := a.requireReady(); err != nil {
		return a.GetDictationStatus(), err
	}
	return a.dictation.StopListening(a.ctx), nil
}

// UpdateText applies a typed edit. It returns false when the edit exceeds
// the character limit.
func (a *App) UpdateText(text string) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.dictation.SetText(text), nil
}

func (a *App) ClearText() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.dictation.Clear()
	return nil
}

func (a *App) GetText() string {
	if a.dictation == nil {
		return ""
	}
	return a.dictation.Text()
}

// SubmitFeedback stops dictation and analyzes the current text. It blocks
// until the submission settles; an ignored submission returns the current
// snapshot unchanged.
func (a *App) SubmitFeedback() (domain.AnalysisSnapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.AnalysisSnapshot{Phase: domain.LifecycleIdle}, err
	}
	snapshot, _ := a.orchestrator.SubmitFrom(a.ctx, a.dictation)
	return snapshot, nil
}

func (a *App) GetDictationStatus() domain.DictationStatus {
	if a.dictation == nil {
		status := domain.DictationStatus{
			State:     domain.DictationStateIdle,
			MaxLength: domain.MaxFeedbackLength,
		}
		if a.bootErr != nil {
			status.Notice = &domain.Notice{Kind: domain.NoticeKindError, Text: a.bootErr.Error(), Persistent: true}
		}
		return status
	}
	return a.dictation.Status()
}

func (a *App) GetAnalysis() domain.AnalysisSnapshot {
	if a.orchestrator == nil {
		return domain.AnalysisSnapshot{Phase: domain.LifecycleIdle}
	}
	return a.orchestrator.Snapshot()
}

// CopyAnalysis copies the settled result to the clipboard.
func (a *App) CopyAnalysis() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.orchestrator.CopyResult(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"analysisProvider": a.cfg.Analysis.Provider,
		"analysisModel":    analysisModel(a.cfg.Analysis),
		"speechProvider":   "Deepgram",
		"speechModel":      a.cfg.Deepgram.Model,
		"language":         a.cfg.Deepgram.Language,
		"rulesFile":        a.cfg.Rules.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"maxLength":        strconv.Itoa(domain.MaxFeedbackLength),
	}
	if a.analyzer != nil {
		info["analysisConfigured"] = strconv.FormatBool(a.analyzer.Configured())
	}
	return info
}

func analysisModel(cfg config.AnalysisConfig) string {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return cfg.OpenAI.Model
	case config.ProviderVader:
		return "vader"
	default:
		return cfg.Gemini.Model
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.dictation == nil || a.orchestrator == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// DictationChanged emits voice input state to the frontend.
func (a *App) DictationChanged(status domain.DictationStatus) {
	a.emitEvent(eventDictation, status)
}

// TranscriptChanged emits the current feedback text.
func (a *App) TranscriptChanged(text string) {
	a.emitEvent(eventTranscript, map[string]string{"text": text})
}

// AnalysisChanged emits submission lifecycle updates.
func (a *App) AnalysisChanged(snapshot domain.AnalysisSnapshot) {
	a.emitEvent(eventAnalysis, snapshot)
}

func (a *App) emitEvent(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}

package ports

import (
	"context"
	"io"

	"esie/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	// Available reports why capture cannot work on this system, or nil.
	Available() error
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active recognition session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming recognition sessions.
type TranscriptionProvider interface {
	Available() error
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RulesEngine transforms dictated utterances using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// GenerationRequest is one JSON-mode generation call.
// Prompt is the full instruction; Input is the raw feedback it embeds.
type GenerationRequest struct {
	Prompt string
	Input  string
}

// TextGenerator produces raw model text for a prompt.
type TextGenerator interface {
	Name() string
	GenerateJSON(ctx context.Context, req GenerationRequest) (string, error)
}

// SentimentAnalyzer classifies feedback text. It never fails.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) domain.SentimentAnalysisResult
}

// EventSink emits backend state to the UI.
type EventSink interface {
	DictationChanged(status domain.DictationStatus)
	TranscriptChanged(text string)
	AnalysisChanged(snapshot domain.AnalysisSnapshot)
}

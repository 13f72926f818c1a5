package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"esie/internal/domain"
	"esie/internal/logging"
	"esie/internal/ports"
)

const (
	MessageUnexpectedError  = "An unexpected error occurred. Please try again."
	MessageSubmissionFailed = "Error during submission process."
)

var ErrNoResult = errors.New("no analysis result available")

// TranscriptSource yields the text to submit, stopping dictation first.
type TranscriptSource interface {
	Handoff(ctx context.Context) string
}

// SubmissionOrchestrator runs one analysis at a time through the
// idle, loading and settled phases.
type SubmissionOrchestrator struct {
	analyzer  ports.SentimentAnalyzer
	clipboard ports.Clipboard
	events    ports.EventSink
	logger    *slog.Logger

	mu       sync.Mutex
	snapshot domain.AnalysisSnapshot
	// handingOff is set while SubmitFrom waits on its source.
	handingOff bool
}

func NewSubmissionOrchestrator(
	analyzer ports.SentimentAnalyzer,
	clipboard ports.Clipboard,
	events ports.EventSink,
	logger *slog.Logger,
) *SubmissionOrchestrator {
	return &SubmissionOrchestrator{
		analyzer:  analyzer,
		clipboard: clipboard,
		events:    eventsOrDiscard(events),
		logger:    logging.OrDefault(logger),
		snapshot:  domain.AnalysisSnapshot{Phase: domain.LifecycleIdle},
	}
}

// Submit analyzes text and blocks until the submission settles. It reports
// false, leaving state untouched, when the trimmed text is empty or another
// submission is in progress.
func (o *SubmissionOrchestrator) Submit(ctx context.Context, text string) (domain.AnalysisSnapshot, bool) {
	return o.submit(ctx, text, false)
}

// SubmitFrom takes the text from source and submits it. While another
// submission is loading or handing off, source is left alone.
func (o *SubmissionOrchestrator) SubmitFrom(ctx context.Context, source TranscriptSource) (domain.AnalysisSnapshot, bool) {
	o.mu.Lock()
	if o.snapshot.Loading || o.handingOff {
		current := o.snapshot
		o.mu.Unlock()
		return current, false
	}
	o.handingOff = true
	o.mu.Unlock()

	text := source.Handoff(ctx)
	return o.submit(ctx, text, true)
}

func (o *SubmissionOrchestrator) submit(ctx context.Context, text string, handedOff bool) (domain.AnalysisSnapshot, bool) {
	trimmed := strings.TrimSpace(text)

	o.mu.Lock()
	if handedOff {
		o.handingOff = false
	}
	if trimmed == "" || o.snapshot.Loading || o.handingOff {
		current := o.snapshot
		o.mu.Unlock()
		return current, false
	}
	id := uuid.NewString()
	o.snapshot = domain.AnalysisSnapshot{
		Phase:        domain.LifecycleLoading,
		Loading:      true,
		SubmissionID: id,
	}
	loading := o.snapshot
	o.mu.Unlock()

	o.events.AnalysisChanged(loading)
	logger := o.logger.With(slog.String("submission", id))
	logger.Info("analysis submitted", slog.Int("chars", len([]rune(trimmed))))

	started := time.Now()
	result, errMsg := o.analyze(ctx, logger, trimmed)

	o.mu.Lock()
	o.snapshot = domain.AnalysisSnapshot{
		Phase:        domain.LifecycleSettled,
		Result:       &result,
		Error:        errMsg,
		SubmissionID: id,
	}
	settled := o.snapshot
	o.mu.Unlock()

	logger.Info("analysis settled",
		slog.String("sentiment", string(result.Sentiment)),
		slog.Duration("elapsed", time.Since(started)),
	)
	o.events.AnalysisChanged(settled)
	return settled, true
}

func (o *SubmissionOrchestrator) analyze(ctx context.Context, logger *slog.Logger, text string) (result domain.SentimentAnalysisResult, errMsg string) {
	if o.analyzer == nil {
		logger.Error("sentiment analyzer is not configured")
		return submissionFailure(text), MessageUnexpectedError
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis failed unexpectedly", slog.Any("panic", r))
			result, errMsg = submissionFailure(text), MessageUnexpectedError
		}
	}()
	return o.analyzer.Analyze(ctx, text), ""
}

func submissionFailure(text string) domain.SentimentAnalysisResult {
	return domain.SentimentAnalysisResult{
		Sentiment:    domain.SentimentUnknown,
		Themes:       []string{},
		Emotions:     []string{MessageSubmissionFailed},
		OriginalText: text,
	}
}

func (o *SubmissionOrchestrator) Snapshot() domain.AnalysisSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

// CopyResult writes a plain-text summary of the settled result to the
// clipboard.
func (o *SubmissionOrchestrator) CopyResult(ctx context.Context) error {
	current := o.Snapshot()
	if current.Phase != domain.LifecycleSettled || current.Result == nil {
		return ErrNoResult
	}
	if o.clipboard == nil {
		return errors.New("clipboard is not available")
	}
	if err := o.clipboard.SetText(ctx, FormatResult(*current.Result)); err != nil {
		return fmt.Errorf("failed to copy analysis: %w", err)
	}
	return nil
}

// FormatResult renders a result as plain text.
func FormatResult(result domain.SentimentAnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sentiment: %s\n", result.Sentiment)
	fmt.Fprintf(&b, "Themes: %s\n", joinOrNone(result.Themes))
	fmt.Fprintf(&b, "Emotions: %s\n", joinOrNone(result.Emotions))
	fmt.Fprintf(&b, "\nFeedback:\n%s\n", result.OriginalText)
	return b.String()
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "None"
	}
	return strings.Join(values, ", ")
}

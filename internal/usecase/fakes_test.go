package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"esie/internal/domain"
	"esie/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	availErr error
	calls    int
}

func (f *fakeAudioCapture) Available() error { return f.availErr }

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeAudioCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	readErr   error
	index     int
	stopCalls int
	stopErr   error
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeAudioSession) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []ports.StreamingSession
	err      error
	availErr error
	calls    int
	lastCfg  ports.StreamingConfig
}

func (f *fakeProvider) Available() error { return f.availErr }

func (f *fakeProvider) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeStreamingSession emits flush on CloseSend, the way a provider
// delivers its last finalized results.
type fakeStreamingSession struct {
	mu         sync.Mutex
	events     chan domain.TranscriptEvent
	flush      []domain.TranscriptEvent
	sendErr    error
	waitErr    error
	closeSend  int
	closeCalls int
	closed     bool
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16)}
}

func (f *fakeStreamingSession) SendAudio(_ []byte) error { return f.sendErr }

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	if !f.closed {
		for _, event := range f.flush {
			f.events <- event
		}
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.end()
	return nil
}

// end closes the event stream as if the provider hung up. Callers hold mu.
func (f *fakeStreamingSession) end() {
	if !f.closed {
		close(f.events)
		f.closed = true
	}
}

func (f *fakeStreamingSession) hangUp() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.end()
}

func (f *fakeStreamingSession) counts() (closeSend int, closeCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeSend, f.closeCalls
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeClipboard struct {
	mu       sync.Mutex
	lastText string
	err      error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastText = text
	return f.err
}

type fakeEventSink struct {
	mu sync.Mutex

	statuses    []domain.DictationStatus
	transcripts []string
	analyses    []domain.AnalysisSnapshot
}

func (f *fakeEventSink) DictationChanged(status domain.DictationStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeEventSink) TranscriptChanged(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, text)
}

func (f *fakeEventSink) AnalysisChanged(snapshot domain.AnalysisSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses = append(f.analyses, snapshot)
}

func (f *fakeEventSink) snapshotStatuses() []domain.DictationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DictationStatus, len(f.statuses))
	copy(out, f.statuses)
	return out
}

func (f *fakeEventSink) snapshotTranscripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.transcripts))
	copy(out, f.transcripts)
	return out
}

func (f *fakeEventSink) snapshotAnalyses() []domain.AnalysisSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AnalysisSnapshot, len(f.analyses))
	copy(out, f.analyses)
	return out
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

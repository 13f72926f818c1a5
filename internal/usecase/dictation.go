package usecase

import (
	"context"
	"errors"
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
	MessageUnsupported  = "Voice input is not supported on this system."
	MessageStartFailed  = "Could not start voice input. Please try again or check permissions."
	MessageTruncated    = "Text limit reached. Some dictated text may have been truncated."
	MessageNoSpeech     = "No speech detected. Please ensure your microphone is working and try again."
	MessageAudioCapture = "Microphone problem. Please check your microphone connection and permissions."
	MessageNotAllowed   = "Microphone access denied. Please allow microphone access in your system settings."

	defaultNoticeTTL = 4 * time.Second
	drainTimeout     = 4 * time.Second
)

// DictationConfig controls voice input behavior.
type DictationConfig struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	ChunkSize int
	MaxLength int
	// NoticeTTL is how long transient notices stay visible.
	NoticeTTL time.Duration
	// NoSpeechTimeout raises no-speech when nothing is recognized after
	// starting. Zero disables the watchdog.
	NoSpeechTimeout time.Duration
	// StopGrace lets in-flight audio reach the provider before the send
	// side is closed.
	StopGrace time.Duration
}

// DictationController owns the feedback text and the voice input session.
// All state lives in one loop goroutine; public methods post requests to it
// and wait for the reply.
type DictationController struct {
	audio      ports.AudioCapture
	provider   ports.TranscriptionProvider
	normalizer utteranceNormalizer
	events     ports.EventSink
	logger     *slog.Logger
	cfg        DictationConfig
	supported  bool

	inbox     chan any
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Loop state.
	state         domain.DictationState
	text          *transcript
	notice        *domain.Notice
	session       *activeSession
	noticeTimer   *time.Timer
	noSpeechTimer *time.Timer

	// Set by the loop before done is closed.
	finalStatus domain.DictationStatus
	finalText   string
}

func NewDictationController(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	rules ports.RulesEngine,
	events ports.EventSink,
	logger *slog.Logger,
	cfg DictationConfig,
) *DictationController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = domain.MaxFeedbackLength
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = defaultNoticeTTL
	}
	cfg.Streaming.InterimResults = false

	logger = logging.OrDefault(logger)
	c := &DictationController{
		audio:      audio,
		provider:   provider,
		normalizer: newUtteranceNormalizer(rules, logger),
		events:     eventsOrDiscard(events),
		logger:     logger,
		cfg:        cfg,
		inbox:      make(chan any),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      domain.DictationStateIdle,
		text:       newTranscript(cfg.MaxLength),
	}

	if err := checkCapability(audio, provider); err != nil {
		logger.Warn("voice input unavailable", slog.Any("error", err))
		c.notice = &domain.Notice{Kind: domain.NoticeKindError, Text: MessageUnsupported, Persistent: true}
	} else {
		c.supported = true
	}

	go c.run()
	return c
}

func checkCapability(audio ports.AudioCapture, provider ports.TranscriptionProvider) error {
	if audio == nil || provider == nil {
		return errors.New("speech recognition is not configured")
	}
	if err := audio.Available(); err != nil {
		return err
	}
	return provider.Available()
}

// StartListening opens a recognition session. It is a no-op when voice input
// is unsupported or already listening. Start failures end in Idle with a
// notice rather than an error.
func (c *DictationController) StartListening(ctx context.Context) domain.DictationStatus {
	reply := make(chan domain.DictationStatus, 1)
	if !c.post(startRequest{ctx: ctx, reply: reply}) {
		return c.finalStatus
	}
	return <-reply
}

// StopListening closes the session after merging its remaining utterances.
// It is idempotent.
func (c *DictationController) StopListening(ctx context.Context) domain.DictationStatus {
	reply := make(chan domain.DictationStatus, 1)
	if !c.post(stopRequest{ctx: ctx, reply: reply}) {
		return c.finalStatus
	}
	return <-reply
}

// SetText applies a typed edit. Text longer than the limit is rejected.
func (c *DictationController) SetText(text string) bool {
	reply := make(chan bool, 1)
	if !c.post(setTextRequest{text: text, reply: reply}) {
		return false
	}
	return <-reply
}

func (c *DictationController) Clear() {
	reply := make(chan struct{}, 1)
	if c.post(clearRequest{reply: reply}) {
		<-reply
	}
}

// Handoff stops listening first so no finalized utterance is lost, then
// returns the trimmed text for submission.
func (c *DictationController) Handoff(ctx context.Context) string {
	reply := make(chan string, 1)
	if !c.post(handoffRequest{ctx: ctx, reply: reply}) {
		return strings.TrimSpace(c.finalText)
	}
	return <-reply
}

func (c *DictationController) Status() domain.DictationStatus {
	reply := make(chan domain.DictationStatus, 1)
	if !c.post(statusRequest{reply: reply}) {
		return c.finalStatus
	}
	return <-reply
}

func (c *DictationController) Text() string {
	reply := make(chan string, 1)
	if !c.post(textRequest{reply: reply}) {
		return c.finalText
	}
	return <-reply
}

// Close aborts any active session and stops the loop.
func (c *DictationController) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
	<-c.done
}

func (c *DictationController) post(msg any) bool {
	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (c *DictationController) run() {
	defer close(c.done)

	for {
		var (
			events    <-chan domain.TranscriptEvent
			failures  <-chan error
			noticeC   <-chan time.Time
			noSpeechC <-chan time.Time
		)
		if c.session != nil {
			events = c.session.events
			failures = c.session.failures
		}
		if c.noticeTimer != nil {
			noticeC = c.noticeTimer.C
		}
		if c.noSpeechTimer != nil {
			noSpeechC = c.noSpeechTimer.C
		}

		select {
		case <-c.quit:
			c.shutdown()
			return
		case msg := <-c.inbox:
			c.handle(msg)
		case event, ok := <-events:
			if !ok {
				c.streamEnded()
				continue
			}
			c.accept(event)
		case err := <-failures:
			c.fail(err)
		case <-noticeC:
			c.noticeTimer = nil
			c.notice = nil
			c.publishStatus()
		case <-noSpeechC:
			c.noSpeechTimer = nil
			c.fail(&domain.RecognitionError{Code: domain.RecognitionNoSpeech})
		}
	}
}

func (c *DictationController) handle(msg any) {
	switch m := msg.(type) {
	case startRequest:
		c.start(m.ctx)
		m.reply <- c.status()
	case stopRequest:
		c.stop(m.ctx)
		m.reply <- c.status()
	case setTextRequest:
		ok := c.text.setTyped(m.text)
		if ok {
			c.publishText()
		}
		m.reply <- ok
	case clearRequest:
		c.text.clear()
		c.publishText()
		m.reply <- struct{}{}
	case handoffRequest:
		c.stop(m.ctx)
		m.reply <- strings.TrimSpace(c.text.String())
	case statusRequest:
		m.reply <- c.status()
	case textRequest:
		m.reply <- c.text.String()
	}
}

func (c *DictationController) start(ctx context.Context) {
	if !c.supported {
		c.publishStatus()
		return
	}
	if c.session != nil {
		return
	}
	c.clearTransientNotice()

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := c.provider.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		cancel()
		c.startFailed(err)
		return
	}

	audio, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		c.startFailed(err)
		return
	}

	s := &activeSession{
		id:       uuid.NewString(),
		cancel:   cancel,
		audio:    audio,
		stream:   stream,
		events:   stream.Events(),
		failures: make(chan error, 1),
		pumpDone: make(chan struct{}),
	}
	go pumpAudioChunks(s.audio, s.stream, c.cfg.ChunkSize, s.failures, s.pumpDone)

	c.session = s
	c.state = domain.DictationStateListening
	if c.cfg.NoSpeechTimeout > 0 {
		c.noSpeechTimer = time.NewTimer(c.cfg.NoSpeechTimeout)
	}
	c.logger.Info("voice input started", slog.String("session", s.id))
	c.publishStatus()
}

func (c *DictationController) startFailed(err error) {
	c.logger.Error("voice input failed to start", slog.Any("error", err))
	c.state = domain.DictationStateIdle
	c.setNotice(domain.Notice{Kind: domain.NoticeKindError, Text: MessageStartFailed}, false)
	c.publishStatus()
}

// stop ends the session gracefully: capture stops, the provider is given the
// grace period and the send side is closed, and every remaining finalized
// utterance is merged before going Idle.
func (c *DictationController) stop(ctx context.Context) {
	s := c.detach()
	if s == nil {
		return
	}

	if err := s.audio.Stop(); err != nil {
		c.logger.Warn("failed to stop audio capture cleanly", slog.String("session", s.id), slog.Any("error", err))
	}

	if c.cfg.StopGrace > 0 {
		timer := time.NewTimer(c.cfg.StopGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = s.stream.CloseSend()
	c.drain(ctx, s)
	if err := waitForStream(s.stream, drainTimeout); err != nil {
		c.logger.Debug("recognition stream closed with error", slog.String("session", s.id), slog.Any("error", err))
	}
	c.release(s)

	c.state = domain.DictationStateIdle
	c.logger.Info("voice input stopped", slog.String("session", s.id))
	c.publishStatus()
}

func (c *DictationController) drain(ctx context.Context, s *activeSession) {
	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()

	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				return
			}
			c.accept(event)
		case <-deadline.C:
			c.logger.Warn("timed out waiting for final utterances", slog.String("session", s.id))
			return
		case <-ctx.Done():
			return
		}
	}
}

// streamEnded handles the provider closing its event stream on its own.
func (c *DictationController) streamEnded() {
	s := c.detach()
	if s == nil {
		return
	}

	err := waitForStream(s.stream, drainTimeout)
	c.release(s)
	c.state = domain.DictationStateIdle
	if err != nil {
		c.raise(s, err)
	} else {
		c.logger.Info("recognition session ended", slog.String("session", s.id))
	}
	c.publishStatus()
}

// fail aborts the session on a recognition error.
func (c *DictationController) fail(err error) {
	s := c.detach()
	if s == nil {
		return
	}

	c.release(s)
	c.state = domain.DictationStateIdle
	c.raise(s, err)
	c.publishStatus()
}

func (c *DictationController) raise(s *activeSession, err error) {
	code := recognitionCode(err)
	c.logger.Error("speech recognition error",
		slog.String("session", s.id),
		slog.String("code", string(code)),
		slog.Any("error", err),
	)
	c.setNotice(domain.Notice{Kind: domain.NoticeKindError, Text: RecognitionMessage(code)}, false)
}

func (c *DictationController) shutdown() {
	if s := c.detach(); s != nil {
		c.release(s)
		c.state = domain.DictationStateIdle
		c.logger.Info("voice input aborted", slog.String("session", s.id))
		c.publishStatus()
	}
	c.stopNoticeTimer()
	c.finalStatus = c.status()
	c.finalText = c.text.String()
}

func (c *DictationController) detach() *activeSession {
	s := c.session
	c.session = nil
	if c.noSpeechTimer != nil {
		c.noSpeechTimer.Stop()
		c.noSpeechTimer = nil
	}
	return s
}

func (c *DictationController) release(s *activeSession) {
	s.cancel()
	_ = s.audio.Stop()
	_ = s.stream.Close()
	<-s.pumpDone
}

func (c *DictationController) accept(event domain.TranscriptEvent) {
	if event.Kind != domain.TranscriptKindFinal {
		return
	}
	utterance := c.normalizer.Normalize(event.Text)
	if utterance == "" {
		return
	}
	if c.noSpeechTimer != nil {
		c.noSpeechTimer.Stop()
		c.noSpeechTimer = nil
	}

	changed, truncated := c.text.appendDictated(utterance)
	if truncated {
		c.logger.Warn("dictated text truncated", slog.Int("limit", c.cfg.MaxLength))
		c.setNotice(domain.Notice{Kind: domain.NoticeKindWarning, Text: MessageTruncated}, true)
	}
	switch {
	case changed:
		c.publishText()
	case truncated:
		c.publishStatus()
	}
}

// setNotice replaces the current notice. A transient notice restarts the
// expiry timer, so an older timer never clears a newer notice.
func (c *DictationController) setNotice(notice domain.Notice, transient bool) {
	c.stopNoticeTimer()
	c.notice = &notice
	if transient {
		c.noticeTimer = time.NewTimer(c.cfg.NoticeTTL)
	}
}

func (c *DictationController) clearTransientNotice() {
	if c.notice != nil && !c.notice.Persistent {
		c.notice = nil
		c.stopNoticeTimer()
	}
}

func (c *DictationController) stopNoticeTimer() {
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
}

func (c *DictationController) status() domain.DictationStatus {
	var notice *domain.Notice
	if c.notice != nil {
		n := *c.notice
		notice = &n
	}
	return domain.DictationStatus{
		State:     c.state,
		Listening: c.state == domain.DictationStateListening,
		Supported: c.supported,
		Notice:    notice,
		Length:    c.text.Len(),
		MaxLength: c.cfg.MaxLength,
	}
}

func (c *DictationController) publishStatus() {
	c.events.DictationChanged(c.status())
}

func (c *DictationController) publishText() {
	c.events.TranscriptChanged(c.text.String())
	c.publishStatus()
}

func recognitionCode(err error) domain.RecognitionErrorCode {
	var recErr *domain.RecognitionError
	if errors.As(err, &recErr) && recErr.Code != "" {
		return recErr.Code
	}
	return domain.RecognitionNetwork
}

// RecognitionMessage maps a recognition error code to user-facing text.
func RecognitionMessage(code domain.RecognitionErrorCode) string {
	switch code {
	case domain.RecognitionNoSpeech:
		return MessageNoSpeech
	case domain.RecognitionAudioCapture:
		return MessageAudioCapture
	case domain.RecognitionNotAllowed:
		return MessageNotAllowed
	default:
		return "Voice input error: " + string(code)
	}
}

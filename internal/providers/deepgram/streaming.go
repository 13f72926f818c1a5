package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"esie/internal/domain"
	"esie/internal/ports"
)

const (
	DefaultAPIBaseURL = "https://api.deepgram.com/v1"
	DefaultModel      = "nova-2"
)

var ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.TranscriptionProvider for Deepgram.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Available reports ErrMissingAPIKey when no credential is configured.
func (p *Provider) Available() error {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// StartStreaming opens a live transcription websocket. Errors are
// *domain.RecognitionError values.
func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if err := p.Available(); err != nil {
		return nil, &domain.RecognitionError{Code: domain.RecognitionServiceNotAllowed, Err: err}
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, &domain.RecognitionError{Code: domain.RecognitionNetwork, Err: err}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, dialError(resp, err)
	}

	session := &streamingSession{
		conn:     conn,
		events:   make(chan domain.TranscriptEvent, 64),
		audio:    make(chan []byte, 32),
		sendDone: make(chan struct{}),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	return session, nil
}

func dialError(resp *http.Response, err error) error {
	code := domain.RecognitionNetwork
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
			code = domain.RecognitionServiceNotAllowed
		}
		err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
	}
	return &domain.RecognitionError{
		Code: code,
		Err:  fmt.Errorf("failed to connect to Deepgram websocket: %w", err),
	}
}

type streamingSession struct {
	conn *websocket.Conn

	events   chan domain.TranscriptEvent
	audio    chan []byte
	sendDone chan struct{}
	done     chan struct{}
	closing  chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

var errSendClosed = errors.New("audio stream is already closed")

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	select {
	case <-s.sendDone:
		return errSendClosed
	default:
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.sendDone:
		return errSendClosed
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

// CloseSend asks Deepgram to flush its last results and end the stream.
func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		close(s.sendDone)
	})
	return nil
}

func (s *streamingSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	if isCleanClose(err) || errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	select {
	case <-s.closing:
		// Read and write failures after a local Close are expected.
		return
	default:
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		var recErr *domain.RecognitionError
		if !errors.As(err, &recErr) {
			err = &domain.RecognitionError{Code: domain.RecognitionNetwork, Err: err}
		}
		s.err = err
	}
}

// isCleanClose reports whether err, possibly wrapped, is a close frame that
// ends the stream normally.
func isCleanClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	default:
		return false
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case chunk := <-s.audio:
			if !s.write(chunk) {
				return
			}
		case <-s.sendDone:
			if !s.flush() {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
				s.setErr(fmt.Errorf("failed to close stream: %w", err))
			}
			return
		}
	}
}

// flush sends audio that was queued before CloseSend.
func (s *streamingSession) flush() bool {
	for {
		select {
		case chunk := <-s.audio:
			if !s.write(chunk) {
				return false
			}
		default:
			return true
		}
	}
}

func (s *streamingSession) write(chunk []byte) bool {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		s.setErr(fmt.Errorf("failed to send audio: %w", err))
		// Unblock readLoop so the session can finish.
		_ = s.conn.Close()
		return false
	}
	return true
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()
	// Once the provider stops talking there is nobody to send audio to.
	defer s.CloseSend()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(&domain.RecognitionError{Code: domain.RecognitionNetwork, Err: errors.New(message)})
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}

		event := domain.TranscriptEvent{Text: transcript, Kind: domain.TranscriptKindPartial}
		if response.IsFinal || response.SpeechFinal {
			event.Kind = domain.TranscriptKindFinal
		}
		if !s.emit(event) {
			return
		}
	}
}

// emit blocks so finalized utterances are never dropped; it gives up only
// once the session is closed locally.
func (s *streamingSession) emit(event domain.TranscriptEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.closing:
		return false
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = DefaultAPIBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

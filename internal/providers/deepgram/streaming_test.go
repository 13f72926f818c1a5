package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"esie/internal/domain"
	"esie/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{})
	if p.cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", p.cfg.Model)
	}
}

func TestProviderStartStreamingRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: " "})
	if err := p.Available(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey from Available, got %v", err)
	}
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	assertCode(t, err, domain.RecognitionServiceNotAllowed)

	if err := NewProvider(Config{APIKey: "key"}).Available(); err != nil {
		t.Fatalf("expected provider with key to be available: %v", err)
	}
}

func TestProviderStreamsFinalTranscripts(t *testing.T) {
	t.Parallel()

	received := make(chan int, 1)
	srv := newListenServer(t, func(conn *websocket.Conn) {
		audioBytes := 0
		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				audioBytes += len(payload)
				continue
			}
			if !strings.Contains(string(payload), "CloseStream") {
				continue
			}
			received <- audioBytes
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hello"}]}}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":" hello team "}]}}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	})

	p := NewProvider(Config{APIKey: "test-key", APIBaseURL: srv.URL + "/v1"})
	session, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.SendAudio([]byte("pcm-bytes")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := session.CloseSend(); err != nil {
		t.Fatalf("close send failed: %v", err)
	}
	if err := session.SendAudio([]byte("late")); err == nil {
		t.Fatalf("expected send after CloseSend to fail")
	}

	var events []domain.TranscriptEvent
	for event := range session.Events() {
		events = append(events, event)
	}
	if len(events) != 2 {
		t.Fatalf("expected partial and final events, got %+v", events)
	}
	if events[0].Kind != domain.TranscriptKindPartial || events[1].Kind != domain.TranscriptKindFinal || events[1].Text != "hello team" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if err := session.Wait(); err != nil {
		t.Fatalf("expected clean stream end, got %v", err)
	}

	select {
	case n := <-received:
		if n != len("pcm-bytes") {
			t.Fatalf("server received %d audio bytes", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("server never saw CloseStream")
	}
}

func TestProviderRejectedCredential(t *testing.T) {
	t.Parallel()

	srv := newListenServer(t, func(conn *websocket.Conn) {})
	p := NewProvider(Config{APIKey: "wrong-key", APIBaseURL: srv.URL + "/v1"})

	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	assertCode(t, err, domain.RecognitionServiceNotAllowed)
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestProviderUnreachableIsNetworkError(t *testing.T) {
	t.Parallel()

	srv := newListenServer(t, func(conn *websocket.Conn) {})
	base := srv.URL
	srv.Close()

	_, err := NewProvider(Config{APIKey: "test-key", APIBaseURL: base}).StartStreaming(context.Background(), ports.StreamingConfig{})
	assertCode(t, err, domain.RecognitionNetwork)
}

func TestProviderErrorMessageEndsSession(t *testing.T) {
	t.Parallel()

	srv := newListenServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","message":"unsupported audio"}`))
		_, _, _ = conn.ReadMessage()
	})

	session, err := NewProvider(Config{APIKey: "test-key", APIBaseURL: srv.URL + "/v1"}).StartStreaming(context.Background(), ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for range session.Events() {
	}
	err = session.Wait()
	assertCode(t, err, domain.RecognitionNetwork)
	if !strings.Contains(err.Error(), "unsupported audio") {
		t.Fatalf("expected provider message, got %v", err)
	}
	_ = session.Close()
}

func TestProviderCloseIsQuiet(t *testing.T) {
	t.Parallel()

	srv := newListenServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	session, err := NewProvider(Config{APIKey: "test-key", APIBaseURL: srv.URL + "/v1"}).StartStreaming(ctx, ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	cancel()
	if err := session.Wait(); err != nil {
		t.Fatalf("expected local close to be quiet, got %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("expected idempotent close, got %v", err)
	}
	if err := session.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected send after close to fail")
	}
}

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "wss://api.deepgram.com/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "encoding=linear16") {
		t.Fatalf("expected default encoding in url: %s", url)
	}
	if !strings.Contains(url, "sample_rate=16000") {
		t.Fatalf("expected default sample_rate in url: %s", url)
	}
	if !strings.Contains(url, "channels=1") {
		t.Fatalf("expected default channels in url: %s", url)
	}
}

func TestBuildListenURLWithLanguageAndSmartFormat(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m", Language: "en-US", SmartFormat: true},
		ports.StreamingConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "ws://localhost:8080/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "language=en-US") {
		t.Fatalf("expected language in url: %s", url)
	}
	if !strings.Contains(url, "smart_format=true") {
		t.Fatalf("expected smart_format in url: %s", url)
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := buildListenURL(Config{APIBaseURL: ":// bad"}, ports.StreamingConfig{})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestExtractTranscript(t *testing.T) {
	t.Parallel()

	r1 := deepgramResponse{}
	r1.Channel.Alternatives = append(r1.Channel.Alternatives, struct {
		Transcript string "json:\"transcript\""
	}{Transcript: " channel "})
	if got := extractTranscript(r1); got != "channel" {
		t.Fatalf("unexpected transcript from channel: %q", got)
	}

	r2 := deepgramResponse{}
	r2.Results.Channels = append(r2.Results.Channels, struct {
		Alternatives []struct {
			Transcript string "json:\"transcript\""
		} "json:\"alternatives\""
	}{
		Alternatives: []struct {
			Transcript string "json:\"transcript\""
		}{{Transcript: "results"}},
	})
	if got := extractTranscript(r2); got != "results" {
		t.Fatalf("unexpected transcript from results: %q", got)
	}

	if got := extractTranscript(deepgramResponse{}); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestStreamingSessionSendAudioClosed(t *testing.T) {
	t.Parallel()

	s := &streamingSession{sendDone: make(chan struct{})}
	close(s.sendDone)
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected closed error")
	}
}

func TestStreamingSessionCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &streamingSession{sendDone: make(chan struct{})}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
}

func TestStreamingSessionSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &streamingSession{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.waitErr() != nil {
		t.Fatalf("expected close error to be ignored")
	}

	s.setErr(errors.New("boom"))
	if s.waitErr() == nil || !strings.Contains(s.waitErr().Error(), "boom") {
		t.Fatalf("expected non-close error to be captured")
	}
}

func TestStreamingSessionSetErrIgnoresWrappedCloseErrors(t *testing.T) {
	t.Parallel()

	for _, code := range []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived} {
		s := &streamingSession{}
		s.setErr(fmt.Errorf("failed to read provider event: %w", &websocket.CloseError{Code: code}))
		if err := s.waitErr(); err != nil {
			t.Fatalf("expected wrapped close %d to be ignored, got %v", code, err)
		}
	}

	s := &streamingSession{}
	s.setErr(fmt.Errorf("failed to read provider event: %w", &websocket.CloseError{Code: websocket.CloseInternalServerErr}))
	assertCode(t, s.waitErr(), domain.RecognitionNetwork)
}

func TestProviderServerNormalCloseIsClean(t *testing.T) {
	t.Parallel()

	srv := newListenServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
	})

	session, err := NewProvider(Config{APIKey: "test-key", APIBaseURL: srv.URL + "/v1"}).StartStreaming(context.Background(), ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for range session.Events() {
	}
	if err := session.Wait(); err != nil {
		t.Fatalf("expected server close to end the stream cleanly, got %v", err)
	}
	_ = session.Close()
}

func TestStreamingSessionSetErrFirstWins(t *testing.T) {
	t.Parallel()

	s := &streamingSession{}
	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.waitErr() == nil || !strings.Contains(s.waitErr().Error(), "first") {
		t.Fatalf("expected first error to win")
	}
	assertCode(t, s.waitErr(), domain.RecognitionNetwork)
}

func TestStreamingSessionSetErrIgnoredAfterClose(t *testing.T) {
	t.Parallel()

	s := &streamingSession{closing: make(chan struct{})}
	close(s.closing)
	s.setErr(errors.New("use of closed network connection"))
	if s.waitErr() != nil {
		t.Fatalf("expected errors after local close to be ignored")
	}
}

func newListenServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/listen" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func assertCode(t *testing.T, err error, code domain.RecognitionErrorCode) {
	t.Helper()
	var recErr *domain.RecognitionError
	if !errors.As(err, &recErr) || recErr.Code != code {
		t.Fatalf("expected %s recognition error, got %v", code, err)
	}
}

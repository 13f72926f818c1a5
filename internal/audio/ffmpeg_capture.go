package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"esie/internal/domain"
	"esie/internal/ports"
)

const (
	startupProbe = 250 * time.Millisecond
	stopTimeout  = 1200 * time.Millisecond
)

// FFMPEGCapture streams microphone PCM audio using ffmpeg.
type FFMPEGCapture struct {
	command  string
	lookPath func(string) (string, error)
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command, lookPath: exec.LookPath}
}

// Available reports an error when the recorder binary cannot be found.
func (c *FFMPEGCapture) Available() error {
	if _, err := c.lookPath(c.command); err != nil {
		return fmt.Errorf("audio recorder %q not found: %w", c.command, err)
	}
	return nil
}

// Start launches the recorder. Failures are returned as
// *domain.RecognitionError so the dictation layer can pick a message.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, c.command, recorderArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, captureError(fmt.Errorf("failed to create recorder stdout pipe: %w", err), "")
	}
	if err := cmd.Start(); err != nil {
		return nil, captureError(fmt.Errorf("failed to start recorder: %w", err), "")
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if err != nil {
			return nil, captureError(fmt.Errorf("recorder exited before capture started: %w: %s", err, detail), detail)
		}
		return nil, captureError(errors.New("recorder exited before capture started"), detail)
	case <-time.After(startupProbe):
	}

	return &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

func recorderArgs(cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// captureError classifies recorder stderr into a recognition error code.
func captureError(err error, stderr string) error {
	lower := strings.ToLower(stderr)
	code := domain.RecognitionAudioCapture
	if strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted") {
		code = domain.RecognitionNotAllowed
	}
	return &domain.RecognitionError{Code: code, Err: err}
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts the recorder, escalating to kill after stopTimeout.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		var err error
		select {
		case err = <-s.waitErr:
		case <-time.After(stopTimeout):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err = <-s.waitErr
		}
		s.stopErr = normalizeStopErr(err)

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.stopErr
}

func normalizeStopErr(err error) error {
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return nil
	}
	return err
}

package usecase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"esie/internal/domain"
	"esie/internal/ports"
)

const defaultChunkSize = 4096

// pumpAudioChunks forwards microphone audio to the stream until capture ends.
// The first failure is reported on failures, which must be buffered.
func pumpAudioChunks(
	audio ports.AudioSession,
	stream ports.StreamingSession,
	chunkSize int,
	failures chan<- error,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				reportFailure(failures, &domain.RecognitionError{
					Code: domain.RecognitionNetwork,
					Err:  fmt.Errorf("failed to stream audio: %w", sendErr),
				})
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				reportFailure(failures, &domain.RecognitionError{
					Code: domain.RecognitionAudioCapture,
					Err:  fmt.Errorf("audio capture error: %w", err),
				})
			}
			return
		}
	}
}

func reportFailure(failures chan<- error, err error) {
	select {
	case failures <- err:
	default:
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}

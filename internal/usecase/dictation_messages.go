package usecase

import (
	"context"

	"esie/internal/domain"
	"esie/internal/ports"
)

// Requests posted to the dictation loop. Each carries a buffered reply
// channel that the loop always answers.
type (
	startRequest struct {
		ctx   context.Context
		reply chan domain.DictationStatus
	}
	stopRequest struct {
		ctx   context.Context
		reply chan domain.DictationStatus
	}
	setTextRequest struct {
		text  string
		reply chan bool
	}
	clearRequest struct {
		reply chan struct{}
	}
	handoffRequest struct {
		ctx   context.Context
		reply chan string
	}
	statusRequest struct {
		reply chan domain.DictationStatus
	}
	textRequest struct {
		reply chan string
	}
)

// activeSession is one open recognition session. Only the loop touches it.
type activeSession struct {
	id     string
	cancel context.CancelFunc
	audio  ports.AudioSession
	stream ports.StreamingSession
	events <-chan domain.TranscriptEvent

	failures chan error
	pumpDone chan struct{}
}

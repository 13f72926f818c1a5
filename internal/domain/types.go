package domain

import "fmt"

// MaxFeedbackLength is the hard character budget for feedback text.
const MaxFeedbackLength = 2000

// DictationState models the voice input lifecycle.
type DictationState string

const (
	DictationStateIdle      DictationState = "idle"
	DictationStateListening DictationState = "listening"
)

// NoticeKind classifies a user-facing dictation notice.
type NoticeKind string

const (
	NoticeKindWarning NoticeKind = "warning"
	NoticeKindError   NoticeKind = "error"
)

// Notice is a human-readable dictation warning or error.
type Notice struct {
	Kind       NoticeKind `json:"kind"`
	Text       string     `json:"text"`
	Persistent bool       `json:"persistent"`
}

// DictationStatus summarizes the dictation controller for the UI.
type DictationStatus struct {
	State     DictationState `json:"state"`
	Listening bool           `json:"listening"`
	Supported bool           `json:"supported"`
	Notice    *Notice        `json:"notice,omitempty"`
	Length    int            `json:"length"`
	MaxLength int            `json:"maxLength"`
}

// RecognitionErrorCode identifies why a recognition session failed.
type RecognitionErrorCode string

const (
	RecognitionNoSpeech             RecognitionErrorCode = "no-speech"
	RecognitionAborted              RecognitionErrorCode = "aborted"
	RecognitionAudioCapture         RecognitionErrorCode = "audio-capture"
	RecognitionNetwork              RecognitionErrorCode = "network"
	RecognitionNotAllowed           RecognitionErrorCode = "not-allowed"
	RecognitionServiceNotAllowed    RecognitionErrorCode = "service-not-allowed"
	RecognitionLanguageNotSupported RecognitionErrorCode = "language-not-supported"
)

// RecognitionError carries a recognition error code and its cause.
type RecognitionError struct {
	Code RecognitionErrorCode
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents one recognition result from a provider.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// SentimentPolarity is the coarse sentiment classification of a text.
type SentimentPolarity string

const (
	SentimentPositive SentimentPolarity = "Positive"
	SentimentNeutral  SentimentPolarity = "Neutral"
	SentimentNegative SentimentPolarity = "Negative"
	SentimentUnknown  SentimentPolarity = "Unknown"
)

// ParsePolarity accepts only an exact, case-sensitive polarity name.
func ParsePolarity(value string) (SentimentPolarity, bool) {
	switch p := SentimentPolarity(value); p {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentUnknown:
		return p, true
	default:
		return SentimentUnknown, false
	}
}

// SentimentAnalysisResult is the normalized outcome of one analysis.
type SentimentAnalysisResult struct {
	Sentiment    SentimentPolarity `json:"sentiment"`
	Themes       []string          `json:"themes"`
	Emotions     []string          `json:"emotions"`
	OriginalText string            `json:"originalText"`
}

// LifecyclePhase models the submission request lifecycle.
type LifecyclePhase string

const (
	LifecycleIdle    LifecyclePhase = "idle"
	LifecycleLoading LifecyclePhase = "loading"
	LifecycleSettled LifecyclePhase = "settled"
)

// AnalysisSnapshot is what the presentation layer observes of a submission.
type AnalysisSnapshot struct {
	Phase        LifecyclePhase           `json:"phase"`
	Loading      bool                     `json:"loading"`
	Result       *SentimentAnalysisResult `json:"result,omitempty"`
	Error        string                   `json:"error,omitempty"`
	SubmissionID string                   `json:"submissionId,omitempty"`
}

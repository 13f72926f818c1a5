package usecase

import (
	"esie/internal/domain"
	"esie/internal/ports"
)

type discardEvents struct{}

func (discardEvents) DictationChanged(domain.DictationStatus)  {}
func (discardEvents) TranscriptChanged(string)                 {}
func (discardEvents) AnalysisChanged(domain.AnalysisSnapshot) {}

func eventsOrDiscard(events ports.EventSink) ports.EventSink {
	if events == nil {
		return discardEvents{}
	}
	return events
}

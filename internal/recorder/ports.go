package recorder

import (
	"context"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/notes"
)

// CaptureSession is a live microphone capture. Stop finalizes the
// buffered audio into a single blob; Release always frees the device and
// is safe to call more than once.
type CaptureSession interface {
	Pause() error
	Resume() error
	Stop() ([]byte, error)
	Release()
}

// CaptureDevice opens microphone capture sessions.
type CaptureDevice interface {
	Start(ctx context.Context) (CaptureSession, error)
}

// Submitter posts a finished recording to the note-creation endpoint.
// A quota rejection surfaces as notes.ErrQuotaExceeded.
type Submitter interface {
	Submit(ctx context.Context, audio []byte, styleID string) (notes.Note, error)
}

// EventSink receives UI-facing signals from the controller.
type EventSink interface {
	StateChanged(state State)
	StageChanged(stage Stage)
	Error(message string)
}

// NopEventSink discards all events.
type NopEventSink struct{}

func (NopEventSink) StateChanged(State) {}
func (NopEventSink) StageChanged(Stage) {}
func (NopEventSink) Error(string)       {}

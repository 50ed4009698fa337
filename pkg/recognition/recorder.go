package recognition

import (
	"context"
	"time"

	"github.com/teslashibe/go-kiosk/pkg/facetrack"
)

// Kind classifies an identity transition.
type Kind string

const (
	KindRecognized   Kind = "recognized"   // a member became current
	KindUnrecognized Kind = "unrecognized" // the service saw no known face
	KindCleared      Kind = "cleared"      // the face left the frame
)

// Transition is one identity change, as kept in the history log.
type Transition struct {
	Kind      Kind
	MemberID  string
	RequestID string
	Level     facetrack.Level
	IsNew     bool
	At        time.Time
}

// Recorder persists transitions.
type Recorder interface {
	Record(ctx context.Context, t Transition) error
}

const recordTimeout = 3 * time.Second

// recordLocked hands t to the recorder without blocking the caller.
func (o *Orchestrator) recordLocked(t Transition) {
	if o.recorder == nil {
		return
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}

	r := o.recorder
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.Record(ctx, t); err != nil {
			o.logger.Warn("record transition failed", "kind", t.Kind, "error", err)
		}
	}()
}

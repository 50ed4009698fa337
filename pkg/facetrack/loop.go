// Package facetrack runs the per-frame face detection loop and classifies
// the dominant face into a proximity level.
package facetrack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-kiosk/pkg/facetrack/detection"
)

// Source supplies frames. Read returns ErrNotReady while the device or
// model is warming up.
type Source interface {
	Read() (detection.Frame, error)
}

// Renderer draws the classification onto the frame, e.g. for a preview.
// It must not block or retain frame.
type Renderer interface {
	Render(frame detection.Frame, box *detection.BoundingBox, level Level)
}

// LevelSink mirrors the level for readers outside the loop.
type LevelSink interface {
	SetLevel(level Level)
}

// Loop runs detection and classification once per frame tick.
type Loop struct {
	config     Config
	source     Source
	detector   detection.Detector
	classifier *Classifier
	logger     *slog.Logger

	mu            sync.RWMutex
	sink          LevelSink
	renderer      Renderer
	onLevelChange func(Level)
	onUnstable    func(Level)

	readErrors int
}

// NewLoop creates a detection loop.
func NewLoop(config Config, source Source, detector detection.Detector, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		config:     config,
		source:     source,
		detector:   detector,
		classifier: NewClassifier(config),
		logger:     logger.With("component", "facetrack.loop"),
	}
}

// SetLevelSink sets where level changes are mirrored.
func (l *Loop) SetLevelSink(sink LevelSink) {
	l.mu.Lock()
	l.sink = sink
	l.mu.Unlock()
}

// SetRenderer sets the overlay renderer.
func (l *Loop) SetRenderer(r Renderer) {
	l.mu.Lock()
	l.renderer = r
	l.mu.Unlock()
}

// OnLevelChange sets the callback fired when the level changes.
func (l *Loop) OnLevelChange(fn func(Level)) {
	l.mu.Lock()
	l.onLevelChange = fn
	l.mu.Unlock()
}

// OnUnstable sets the callback fired when the face box jumps.
func (l *Loop) OnUnstable(fn func(Level)) {
	l.mu.Lock()
	l.onUnstable = fn
	l.mu.Unlock()
}

// Level returns the current level.
func (l *Loop) Level() Level {
	return l.classifier.Level()
}

// Run processes frames until ctx is done. A cycle never starts before the
// previous one has finished.
func (l *Loop) Run(ctx context.Context) error {
	if l.config.FrameInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, l.config.FrameInterval)
	}
	ticker := time.NewTicker(l.config.FrameInterval)
	defer ticker.Stop()

	start := time.Now()
	l.logger.Info("detection loop started",
		"interval", l.config.FrameInterval,
		"small_threshold", l.config.SmallFaceThreshold,
		"large_threshold", l.config.LargeFaceThreshold,
		"iou_threshold", l.config.IOUThreshold,
	)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("detection loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.cycle(time.Since(start))
		}
	}
}

// cycle runs one detect-classify-dispatch pass. Errors and panics are
// logged and the loop carries on with the next tick.
func (l *Loop) cycle(ts time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("detection cycle panicked", "panic", fmt.Sprint(r))
		}
	}()

	frame, err := l.source.Read()
	if err != nil {
		if !errors.Is(err, ErrNotReady) {
			l.readErrors++
			if l.readErrors == 1 || l.readErrors%100 == 0 {
				l.logger.Warn("frame read failed", "error", err, "count", l.readErrors)
			}
		}
		return
	}
	l.readErrors = 0
	defer frame.Close()

	dets, err := l.detector.Detect(frame, ts)
	if err != nil {
		l.logger.Warn("detection failed", "error", err)
		return
	}

	var box *detection.BoundingBox
	if best := detection.Largest(dets); best != nil {
		b := best.Box
		box = &b
	}

	d := l.classifier.Observe(box)

	l.mu.RLock()
	sink, renderer := l.sink, l.renderer
	onLevelChange, onUnstable := l.onLevelChange, l.onUnstable
	l.mu.RUnlock()

	if d.Unstable {
		l.logger.Debug("face box unstable", "iou", d.IOU, "level", d.Level)
		if onUnstable != nil {
			onUnstable(d.Level)
		}
	}

	if d.Changed {
		l.logger.Info("face level changed", "from", d.Previous, "to", d.Level, "area", d.Area)
		if sink != nil {
			sink.SetLevel(d.Level)
		}
		if onLevelChange != nil {
			onLevelChange(d.Level)
		}
	}

	if renderer != nil {
		renderer.Render(frame, box, d.Level)
	}
}

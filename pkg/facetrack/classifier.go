package facetrack

import (
	"sync"

	"github.com/teslashibe/go-kiosk/pkg/facetrack/detection"
)

// Decision is the outcome of classifying one frame.
type Decision struct {
	Level    Level
	Previous Level
	Changed  bool

	// Unstable is set when the box jumped relative to the previous frame.
	// It is reported at the new level, whether or not the level changed.
	Unstable bool
	IOU      float64 // 0 when there was no previous box

	Area float64
}

// Classifier turns the dominant face box of each frame into a Level with
// hysteresis between NEAR and CLOSE.
type Classifier struct {
	config Config

	mu        sync.Mutex
	level     Level
	threshold float64
	prev      *detection.BoundingBox
}

// NewClassifier creates a classifier starting at LevelNone.
func NewClassifier(config Config) *Classifier {
	return &Classifier{
		config:    config,
		level:     LevelNone,
		threshold: config.LargeFaceThreshold,
	}
}

// Observe classifies the dominant face box of a frame. A nil box means no
// face was detected.
func (c *Classifier) Observe(box *detection.BoundingBox) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := Decision{Previous: c.level}

	if box == nil {
		d.Level = LevelNone
		c.threshold = c.config.LargeFaceThreshold
		c.prev = nil
	} else {
		d.Area = box.Area()

		active := c.config.LargeFaceThreshold
		if c.level == LevelClose {
			active = c.config.SmallFaceThreshold
		}

		if d.Area >= active {
			d.Level = LevelClose
			c.threshold = c.config.SmallFaceThreshold
		} else {
			d.Level = LevelNear
			c.threshold = c.config.LargeFaceThreshold
		}

		if c.prev != nil {
			d.IOU = detection.IOU(*c.prev, *box)
			d.Unstable = d.IOU < c.config.IOUThreshold
		}
		b := *box
		c.prev = &b
	}

	if d.Level != c.level {
		d.Changed = true
		c.level = d.Level
	}
	return d
}

// Level returns the current level.
func (c *Classifier) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Threshold returns the area cut the next face must reach to be CLOSE.
func (c *Classifier) Threshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// Reset returns the classifier to LevelNone with no previous box.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = LevelNone
	c.threshold = c.config.LargeFaceThreshold
	c.prev = nil
}

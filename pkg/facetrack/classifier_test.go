package facetrack

import (
	"testing"

	"github.com/teslashibe/go-kiosk/pkg/facetrack/detection"
)

// boxOfArea returns a box of the given area, 100px tall at a fixed origin.
// Areas used in these tests are multiples of 100 so the product is exact.
func boxOfArea(area float64) *detection.BoundingBox {
	return &detection.BoundingBox{OriginX: 100, OriginY: 50, Width: area / 100, Height: 100}
}

func TestClassifier_Levels(t *testing.T) {
	tests := []struct {
		name   string
		areas  []float64 // 0 means no face
		levels []Level
	}{
		{
			name:   "approach and leave",
			areas:  []float64{0, 12000, 30000, 12000, 0},
			levels: []Level{LevelNone, LevelNear, LevelClose, LevelClose, LevelNone},
		},
		{
			name:   "hysteresis holds CLOSE above small threshold",
			areas:  []float64{30000, 15000, 11000, 10000},
			levels: []Level{LevelClose, LevelClose, LevelClose, LevelClose},
		},
		{
			name:   "drops to NEAR below small threshold",
			areas:  []float64{30000, 9000, 20000},
			levels: []Level{LevelClose, LevelNear, LevelNear},
		},
		{
			name:   "NEAR needs large threshold to enter CLOSE",
			areas:  []float64{15000, 24000, 25000},
			levels: []Level{LevelNear, LevelNear, LevelClose},
		},
		{
			name:   "NONE resets to the large threshold",
			areas:  []float64{30000, 0, 15000},
			levels: []Level{LevelClose, LevelNone, LevelNear},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClassifier(DefaultConfig())
			for i, area := range tc.areas {
				var box *detection.BoundingBox
				if area > 0 {
					box = boxOfArea(area)
				}
				d := c.Observe(box)
				if d.Level != tc.levels[i] {
					t.Fatalf("step %d (area %.0f): level = %s, want %s", i, area, d.Level, tc.levels[i])
				}
				if c.Level() != d.Level {
					t.Fatalf("step %d: Level() = %s, decision = %s", i, c.Level(), d.Level)
				}
			}
		})
	}
}

func TestClassifier_EqualThresholdsGoStraightToClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmallFaceThreshold = 25000
	cfg.LargeFaceThreshold = 25000
	c := NewClassifier(cfg)

	want := []Level{LevelNone, LevelClose, LevelClose}
	var changed []bool
	for i, box := range []*detection.BoundingBox{nil, boxOfArea(30000), boxOfArea(30000)} {
		d := c.Observe(box)
		if d.Level != want[i] {
			t.Fatalf("step %d: level = %s, want %s", i, d.Level, want[i])
		}
		changed = append(changed, d.Changed)
	}
	if changed[0] || !changed[1] || changed[2] {
		t.Errorf("changed = %v, want [false true false]", changed)
	}
}

func TestClassifier_Changed(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	if d := c.Observe(nil); d.Changed {
		t.Error("NONE to NONE should not report a change")
	}
	d := c.Observe(boxOfArea(12000))
	if !d.Changed || d.Previous != LevelNone || d.Level != LevelNear {
		t.Errorf("decision = %+v, want NONE to NEAR change", d)
	}
	if d := c.Observe(boxOfArea(12000)); d.Changed {
		t.Error("NEAR to NEAR should not report a change")
	}
}

func TestClassifier_Unstable(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	first := &detection.BoundingBox{OriginX: 0, OriginY: 0, Width: 120, Height: 120}
	if d := c.Observe(first); d.Unstable {
		t.Error("first box has nothing to compare with")
	}

	// same size, shifted so IOU is about 0.33
	moved := &detection.BoundingBox{OriginX: 60, OriginY: 0, Width: 120, Height: 120}
	d := c.Observe(moved)
	if !d.Unstable {
		t.Fatalf("IOU %.2f should be unstable", d.IOU)
	}
	if d.Changed {
		t.Error("level should not change for a same-size jump")
	}
	if d.Level != LevelNear {
		t.Errorf("level = %s, want NEAR", d.Level)
	}

	// small shift stays stable
	if d := c.Observe(&detection.BoundingBox{OriginX: 65, OriginY: 2, Width: 120, Height: 120}); d.Unstable {
		t.Errorf("IOU %.2f should be stable", d.IOU)
	}
}

func TestClassifier_UnstableWithLevelChange(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	c.Observe(&detection.BoundingBox{OriginX: 0, OriginY: 0, Width: 100, Height: 100})

	d := c.Observe(&detection.BoundingBox{OriginX: 300, OriginY: 200, Width: 200, Height: 200})
	if !d.Unstable || !d.Changed || d.Level != LevelClose {
		t.Errorf("decision = %+v, want unstable change to CLOSE", d)
	}
}

func TestClassifier_NoneClearsPreviousBox(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	c.Observe(&detection.BoundingBox{OriginX: 0, OriginY: 0, Width: 100, Height: 100})
	c.Observe(nil)

	d := c.Observe(&detection.BoundingBox{OriginX: 400, OriginY: 300, Width: 100, Height: 100})
	if d.Unstable {
		t.Error("a face after NONE should not be compared with the old box")
	}
}

func TestClassifier_ThresholdAndReset(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	if c.Threshold() != 25000 {
		t.Errorf("initial threshold = %.0f, want 25000", c.Threshold())
	}
	c.Observe(boxOfArea(30000))
	if c.Threshold() != 10000 {
		t.Errorf("threshold at CLOSE = %.0f, want 10000", c.Threshold())
	}
	c.Reset()
	if c.Level() != LevelNone || c.Threshold() != 25000 {
		t.Errorf("after Reset: level %s threshold %.0f", c.Level(), c.Threshold())
	}
}

func TestLevel_StringAndColor(t *testing.T) {
	tests := []struct {
		level Level
		name  string
		color string
	}{
		{LevelNone, "NONE", "#cccccc"},
		{LevelNear, "NEAR", "#ff0000"},
		{LevelClose, "CLOSE", "#00ff00"},
		{Level(7), "UNKNOWN", "#cccccc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.level.String() != tc.name {
				t.Errorf("String() = %s", tc.level.String())
			}
			if tc.level.Color() != tc.color {
				t.Errorf("Color() = %s", tc.level.Color())
			}
		})
	}
}

package camera

import (
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-kiosk/pkg/facetrack"
	"github.com/teslashibe/go-kiosk/pkg/facetrack/detection"
)

// Overlay draws the face box in the level colour and publishes throttled
// JPEG previews. It implements facetrack.Renderer.
type Overlay struct {
	quality  int
	interval time.Duration
	publish  func(jpeg []byte, width, height int)
	logger   *slog.Logger

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewOverlay creates an overlay renderer. publish must not block.
func NewOverlay(cfg Config, publish func(jpeg []byte, width, height int), logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay{
		quality:  cfg.PreviewQuality,
		interval: cfg.PreviewInterval,
		publish:  publish,
		logger:   logger.With("component", "camera.overlay"),
		now:      time.Now,
	}
}

// Render draws box on frame and publishes a preview when one is due.
func (o *Overlay) Render(frame detection.Frame, box *detection.BoundingBox, level facetrack.Level) {
	if o.publish == nil || o.interval <= 0 || !o.due() {
		return
	}
	f, ok := frame.(*Frame)
	if !ok || f.Mat.Empty() {
		return
	}

	if box != nil {
		r, g, b := level.RGB()
		rect := image.Rect(
			int(box.OriginX),
			int(box.OriginY),
			int(box.OriginX+box.Width),
			int(box.OriginY+box.Height),
		)
		gocv.Rectangle(&f.Mat, rect, color.RGBA{r, g, b, 0}, 2)
	}

	jpeg, err := EncodeJPEG(f.Mat, o.quality)
	if err != nil {
		o.logger.Warn("preview encode failed", "error", err)
		return
	}
	o.publish(jpeg, f.Mat.Cols(), f.Mat.Rows())
}

// due reports whether the preview interval has elapsed and claims the slot.
func (o *Overlay) due() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if !o.last.IsZero() && now.Sub(o.last) < o.interval {
		return false
	}
	o.last = now
	return true
}

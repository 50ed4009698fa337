package camera

import (
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-kiosk/pkg/facetrack"
	"github.com/teslashibe/go-kiosk/pkg/facetrack/detection"
)

// Frame is a captured BGR image. The receiver of a Frame closes it.
type Frame struct {
	Mat gocv.Mat
}

// Size returns the frame dimensions.
func (f *Frame) Size() (int, int) {
	return f.Mat.Cols(), f.Mat.Rows()
}

// Close releases the image.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Camera reads frames from a capture device and keeps the latest one for
// recognition snapshots.
type Camera struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex // Protects capture
	capture *gocv.VideoCapture
	closed  bool
	frames  uint64

	latestMu sync.RWMutex
	latest   gocv.Mat
}

// Open opens the capture device. The error wraps ErrUnavailable when the
// device cannot be opened.
func Open(cfg Config, logger *slog.Logger) (*Camera, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}
	if logger == nil {
		logger = slog.Default()
	}

	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s is not opened", ErrUnavailable, cfg.Device)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	c := &Camera{
		config:  cfg,
		logger:  logger.With("component", "camera.camera"),
		capture: capture,
		latest:  gocv.NewMat(),
	}
	c.logger.Info("camera opened", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
	return c, nil
}

// Config returns the camera configuration.
func (c *Camera) Config() Config {
	return c.config
}

// Read captures one frame scaled to the configured size. Until the first
// frame arrives it returns facetrack.ErrNotReady.
func (c *Camera) Read() (detection.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if c.frames == 0 {
			return nil, facetrack.ErrNotReady
		}
		return nil, ErrEmptyFrame
	}

	if mat.Cols() != c.config.Width || mat.Rows() != c.config.Height {
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, image.Pt(c.config.Width, c.config.Height), 0, 0, gocv.InterpolationLinear)
		mat.Close()
		mat = resized
	}
	c.frames++

	c.latestMu.Lock()
	c.latest.Close()
	c.latest = mat.Clone()
	c.latestMu.Unlock()

	return &Frame{Mat: mat}, nil
}

// Snapshot returns the latest frame as JPEG at the configured quality.
func (c *Camera) Snapshot() ([]byte, error) {
	c.latestMu.RLock()
	defer c.latestMu.RUnlock()

	if c.latest.Empty() {
		return nil, facetrack.ErrNotReady
	}
	return EncodeJPEG(c.latest, c.config.JPEGQuality)
}

// Close releases the device and the retained frame.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.latestMu.Lock()
	c.latest.Close()
	c.latestMu.Unlock()

	c.logger.Info("camera closed", "frames", c.frames)
	return c.capture.Close()
}

// EncodeJPEG encodes img as JPEG with the given quality.
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory released by Close.
	return append([]byte(nil), buf.GetBytes()...), nil
}

// LoadJPEG reads an image file, scales it to the configured frame size and
// encodes it like a recognition snapshot.
func LoadJPEG(path string, cfg Config) ([]byte, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("read image %s: empty or unsupported", path)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(cfg.Width, cfg.Height), 0, 0, gocv.InterpolationLinear)

	return EncodeJPEG(resized, cfg.JPEGQuality)
}

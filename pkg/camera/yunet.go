package camera

import (
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-kiosk/pkg/facetrack/detection"
)

// YuNet uses OpenCV's FaceDetectorYN for face detection.
type YuNet struct {
	detector gocv.FaceDetectorYN
	config   detection.Config
	size     image.Point
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a YuNet face detector.
func NewYuNet(cfg detection.Config) (*YuNet, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	size := image.Pt(cfg.InputWidth, cfg.InputHeight)
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		size,
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{
		detector: detector,
		config:   cfg,
		size:     size,
	}, nil
}

// Detect finds faces in frame. Boxes are in frame pixels.
func (d *YuNet) Detect(frame detection.Frame, _ time.Duration) ([]detection.Detection, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return nil, fmt.Errorf("yunet: unsupported frame type %T", frame)
	}
	if f.Mat.Empty() {
		return nil, fmt.Errorf("yunet: empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if size := image.Pt(f.Mat.Cols(), f.Mat.Rows()); size != d.size {
		d.detector.SetInputSize(size)
		d.size = size
	}

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(f.Mat, &faces)

	// Each row: x, y, w, h, five landmark pairs, score.
	dets := make([]detection.Detection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		dets = append(dets, detection.Detection{
			Box: detection.BoundingBox{
				OriginX: float64(faces.GetFloatAt(r, 0)),
				OriginY: float64(faces.GetFloatAt(r, 1)),
				Width:   float64(faces.GetFloatAt(r, 2)),
				Height:  float64(faces.GetFloatAt(r, 3)),
			},
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}
	return dets, nil
}

// Close releases the detector resources.
func (d *YuNet) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}

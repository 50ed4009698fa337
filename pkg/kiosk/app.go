// Package kiosk wires the face-tracking identity pipeline into one process:
// camera and detection loop, recognition orchestrator, member API, identity
// store, and the kiosk state server.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-kiosk/internal/config"
	"github.com/teslashibe/go-kiosk/pkg/camera"
	"github.com/teslashibe/go-kiosk/pkg/facetrack"
	"github.com/teslashibe/go-kiosk/pkg/history"
	"github.com/teslashibe/go-kiosk/pkg/identity"
	"github.com/teslashibe/go-kiosk/pkg/members"
	"github.com/teslashibe/go-kiosk/pkg/protocol"
	"github.com/teslashibe/go-kiosk/pkg/recognition"
	"github.com/teslashibe/go-kiosk/pkg/transport"
	"github.com/teslashibe/go-kiosk/pkg/web"
)

const preloadTimeout = 15 * time.Second

// App is the kiosk application. It manages all components and their
// lifecycle.
type App struct {
	config config.Config
	base   *slog.Logger
	logger *slog.Logger

	// Identity pipeline
	store     *identity.Store
	members   *members.Client
	transport *transport.Manager
	orch      *recognition.Orchestrator

	// Vision
	camera    *camera.Camera
	detector  *camera.YuNet
	loop      *facetrack.Loop
	cameraErr string

	// Optional
	history *history.Store

	webServer *web.Server
}

// New creates an application from a validated configuration.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		config: cfg,
		base:   logger,
		logger: logger.With("component", "kiosk.app"),
	}, nil
}

// Init initializes all components. Call this after New and before Run.
// A camera that cannot be opened is not fatal: the error is reported in
// the status and the detection loop never starts.
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("kiosk starting",
		"local_server", a.config.LocalServerURL,
		"api_server", a.config.APIServerURL,
		"camera", a.config.CameraDevice,
	)

	a.initIdentity()

	if a.config.DatabaseURL != "" {
		if err := a.initHistory(ctx); err != nil {
			a.logger.Warn("history disabled", "error", err)
		}
	}

	if err := a.initVision(); err != nil {
		a.cameraErr = err.Error()
		a.logger.Error("camera unavailable, detection disabled", "error", err)
	}

	a.initRecognition()
	return nil
}

// initIdentity creates the store, the member client, the state server and
// the transport, in that order so callbacks always find their targets.
func (a *App) initIdentity() {
	t := a.config.Tuning

	a.store = identity.NewStore()
	a.members = members.NewClient(
		members.WithBaseURL(a.config.APIServerURL),
		members.WithLogger(a.base),
	)
	a.webServer = web.NewServer(a.config.Port, a.store, a.Status, a.base)

	a.transport = transport.New(a.config.LocalServerURL,
		transport.WithReconnectPolicy(t.ReconnectInterval, t.MaxReconnectAttempts),
		transport.WithLogger(a.base),
		transport.WithOnOpen(a.webServer.PublishStatus),
		transport.WithOnClose(a.webServer.PublishStatus),
		transport.WithOnError(func(error) { a.webServer.PublishStatus() }),
	)
}

func (a *App) initHistory(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	h, err := history.Open(ctx, a.config.DatabaseURL, a.base)
	if err != nil {
		return err
	}
	a.history = h
	return nil
}

func (a *App) initVision() error {
	cfg := a.cameraConfig()

	cam, err := camera.Open(cfg, a.base)
	if err != nil {
		return err
	}
	det, err := camera.NewYuNet(cfg.Detector)
	if err != nil {
		cam.Close()
		return fmt.Errorf("face detector: %w", err)
	}
	a.camera = cam
	a.detector = det

	a.loop = facetrack.NewLoop(a.trackConfig(), cam, det, a.base)
	a.loop.SetLevelSink(a.store)
	a.loop.SetRenderer(camera.NewOverlay(cfg, a.webServer.SendCameraFrame, a.base))
	return nil
}

func (a *App) initRecognition() {
	t := a.config.Tuning

	var snap recognition.Snapshotter = noCamera{}
	if a.camera != nil {
		snap = a.camera
	}

	a.orch = recognition.New(a.transport, snap, a.members, a.store,
		recognition.WithResponseTimeout(t.ResponseTimeout),
		recognition.WithFollowUpDelay(t.FollowUpDelay),
		recognition.WithLogger(a.base),
	)
	if a.history != nil {
		a.orch.SetRecorder(a.history)
	}

	if a.loop != nil {
		a.loop.OnLevelChange(a.orch.HandleLevelChange)
		a.loop.OnUnstable(a.orch.HandleUnstable)
	}
}

// Run starts the state server, the transport and the member preload, then
// runs the detection loop until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.webServer.StartAsync(ctx)
	a.transport.Connect()
	go a.preloadMembers(ctx)

	if a.loop == nil {
		<-ctx.Done()
		return nil
	}

	if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// preloadMembers fills the member list once at startup.
func (a *App) preloadMembers(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, preloadTimeout)
	defer cancel()

	list, err := a.members.GetMembers(ctx)
	if err != nil {
		a.logger.Warn("member preload failed", "error", err)
		return
	}
	a.store.SetMembers(list)
	a.logger.Info("members loaded", "count", len(list))
}

// Status reports process health for the state server.
func (a *App) Status() protocol.StatusData {
	s := protocol.StatusData{CameraError: a.cameraErr}
	if a.transport != nil {
		s.Transport = string(a.transport.Status())
	}
	if a.orch != nil {
		s.Pending = a.orch.Status().Pending
	}
	return s
}

// Store returns the identity store.
func (a *App) Store() *identity.Store {
	return a.store
}

// Shutdown releases all components. Call it after Run has returned.
func (a *App) Shutdown() {
	if a.orch != nil {
		a.orch.Close()
	}
	if a.transport != nil {
		a.transport.Teardown()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.camera != nil {
		a.camera.Close()
	}
	if a.webServer != nil {
		if err := a.webServer.Shutdown(); err != nil {
			a.logger.Warn("web server shutdown", "error", err)
		}
	}
	if a.history != nil {
		a.history.Close()
	}
	a.logger.Info("kiosk stopped")
}

func (a *App) cameraConfig() camera.Config {
	t := a.config.Tuning
	cfg := camera.DefaultConfig()
	cfg.Device = a.config.CameraDevice
	cfg.Width = t.FrameWidth
	cfg.Height = t.FrameHeight
	cfg.JPEGQuality = t.JPEGQuality
	cfg.Detector.ModelPath = a.config.FaceModelPath
	cfg.Detector.InputWidth = t.FrameWidth
	cfg.Detector.InputHeight = t.FrameHeight
	return cfg
}

func (a *App) trackConfig() facetrack.Config {
	t := a.config.Tuning
	return facetrack.Config{
		FrameInterval:      t.FrameInterval,
		SmallFaceThreshold: t.SmallFaceThreshold,
		LargeFaceThreshold: t.LargeFaceThreshold,
		IOUThreshold:       t.IOUThreshold,
	}
}

// noCamera stands in for the camera when it could not be opened.
type noCamera struct{}

func (noCamera) Snapshot() ([]byte, error) { return nil, camera.ErrUnavailable }

// Package web serves kiosk state to the UI: who is in front of the fridge,
// the face level, process health, and an overlay camera preview.
package web

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-kiosk/pkg/facetrack"
	"github.com/teslashibe/go-kiosk/pkg/hub"
	"github.com/teslashibe/go-kiosk/pkg/identity"
	"github.com/teslashibe/go-kiosk/pkg/protocol"
)

// StatusFunc reports process health.
type StatusFunc func() protocol.StatusData

// Server is the kiosk state server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	store  *identity.Store
	status StatusFunc

	// Hubs for websocket broadcast
	stateHub  *hub.Hub
	cameraHub *hub.Hub

	unsubscribe func()
}

// NewServer creates a server bound to store. status may be nil.
func NewServer(port string, store *identity.Store, status StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if status == nil {
		status = func() protocol.StatusData { return protocol.StatusData{} }
	}

	s := &Server{
		port:      port,
		logger:    logger.With("component", "web.server"),
		store:     store,
		status:    status,
		stateHub:  hub.New("state", logger),
		cameraHub: hub.New("camera", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Kiosk",
		DisableStartupMessage: true,
	})

	// CORS for the kiosk UI dev server
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/identity", s.handleIdentity)
	api.Get("/level", s.handleLevel)
	api.Get("/status", s.handleStatus)
	api.Get("/members", s.handleMembers)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/identity", websocket.New(s.handleIdentityWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	s.unsubscribe = store.Subscribe(s.onChange)
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs with ctx and serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.stateHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	s.logger.Info("kiosk state server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// PublishStatus pushes the current status to state clients.
func (s *Server) PublishStatus() {
	s.broadcast(protocol.TypeStatus, s.status())
}

// SendCameraFrame pushes an overlay preview to camera clients.
func (s *Server) SendCameraFrame(jpeg []byte, width, height int) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraBroadcast(protocol.FrameData{
		Width:  width,
		Height: height,
		Format: "jpeg",
		Data:   base64.StdEncoding.EncodeToString(jpeg),
	})
}

// Shutdown stops the HTTP server and detaches from the store. Hubs stop
// with the context passed to Start.
func (s *Server) Shutdown() error {
	s.unsubscribe()
	return s.app.Shutdown()
}

// onChange mirrors store writes to state clients. It runs on the writer's
// goroutine and never blocks.
func (s *Server) onChange(ch identity.Change) {
	switch ch.Field {
	case identity.FieldCurrent:
		s.broadcast(protocol.TypeIdentity, identityData{Member: ch.Snapshot.Current})
	case identity.FieldLevel:
		s.broadcast(protocol.TypeLevel, levelData(ch.Snapshot.Level))
	case identity.FieldMembers:
		s.broadcast(protocol.TypeMembers, ch.Snapshot.Members)
	}
}

func (s *Server) broadcast(t protocol.MessageType, data any) {
	msg, err := encode(t, data)
	if err != nil {
		s.logger.Warn("encode state message failed", "type", t, "error", err)
		return
	}
	s.stateHub.Broadcast(msg)
}

func (s *Server) cameraBroadcast(frame protocol.FrameData) {
	msg, err := encode(protocol.TypeFrame, frame)
	if err != nil {
		s.logger.Warn("encode frame failed", "error", err)
		return
	}
	s.cameraHub.Broadcast(msg)
}

func encode(t protocol.MessageType, data any) (hub.Message, error) {
	m, err := protocol.NewMessage(t, data)
	if err != nil {
		return hub.Message{}, err
	}
	b, err := m.Bytes()
	if err != nil {
		return hub.Message{}, err
	}
	return hub.NewJSONMessage(b), nil
}

func levelData(l facetrack.Level) protocol.LevelData {
	return protocol.LevelData{Level: int(l), Name: l.String(), Color: l.Color()}
}

package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-kiosk/pkg/hub"
	"github.com/teslashibe/go-kiosk/pkg/members"
	"github.com/teslashibe/go-kiosk/pkg/protocol"
)

// identityData is the payload of identity messages. Member is null when
// nobody is recognized.
type identityData struct {
	Member *members.Member `json:"member"`
}

// handleIdentity returns the current member
func (s *Server) handleIdentity(c *fiber.Ctx) error {
	return c.JSON(identityData{Member: s.store.Current()})
}

// handleLevel returns the face level
func (s *Server) handleLevel(c *fiber.Ctx) error {
	return c.JSON(levelData(s.store.Level()))
}

// handleStatus returns transport, camera and request state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleMembers returns the cached member list
func (s *Server) handleMembers(c *fiber.Ctx) error {
	list := s.store.Members()
	if list == nil {
		list = []members.Member{}
	}
	return c.JSON(list)
}

// handleIdentityWS sends a snapshot of identity, level and status, then
// every change.
func (s *Server) handleIdentityWS(c *websocket.Conn) {
	snap := s.store.Snapshot()

	var greeting []hub.Message
	for _, m := range []struct {
		t    protocol.MessageType
		data any
	}{
		{protocol.TypeIdentity, identityData{Member: snap.Current}},
		{protocol.TypeLevel, levelData(snap.Level)},
		{protocol.TypeStatus, s.status()},
	} {
		msg, err := encode(m.t, m.data)
		if err != nil {
			s.logger.Warn("encode greeting failed", "type", m.t, "error", err)
			continue
		}
		greeting = append(greeting, msg)
	}

	if client := hub.NewClient(s.stateHub, c, greeting...); client != nil {
		client.Run()
	}
}

// handleCameraWS streams overlay preview frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	if client := hub.NewClient(s.cameraHub, c); client != nil {
		client.Run()
	}
}

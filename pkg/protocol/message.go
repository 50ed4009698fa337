// Package protocol defines the JSON messages the kiosk exchanges over WebSocket.
// Recognition types travel to and from the local face recognition service;
// Message is the envelope pushed to kiosk UI clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// Recognition service messages
// =============================================================================

// RecognitionRequest asks the recognition service to identify the face in Image.
type RecognitionRequest struct {
	Image string  `json:"image"` // base64 JPEG, no data-URL prefix
	Level int     `json:"level"` // face level at send time: 0, 1 or 2
	UUID  *string `json:"uuid"`  // last known member id, null when unknown
}

// NewRecognitionRequest builds a request. An empty memberID encodes as null.
func NewRecognitionRequest(image string, level int, memberID string) RecognitionRequest {
	req := RecognitionRequest{Image: image, Level: level}
	if memberID != "" {
		req.UUID = &memberID
	}
	return req
}

// Match is one recognized face in a RecognitionResponse.
type Match struct {
	Identity  string   `json:"identity"`
	Hash      string   `json:"hash,omitempty"`
	TargetX   *float64 `json:"target_x,omitempty"`
	TargetY   *float64 `json:"target_y,omitempty"`
	TargetW   *float64 `json:"target_w,omitempty"`
	TargetH   *float64 `json:"target_h,omitempty"`
	SourceX   *float64 `json:"source_x,omitempty"`
	SourceY   *float64 `json:"source_y,omitempty"`
	SourceW   *float64 `json:"source_w,omitempty"`
	SourceH   *float64 `json:"source_h,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
}

// RecognitionResponse is the service's answer to a RecognitionRequest.
// The service reports failures as {"status":"error","message":...}.
type RecognitionResponse struct {
	Result  []Match `json:"result"`
	IsNew   bool    `json:"is_new"`
	Status  string  `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
}

// IsError reports whether the service returned an error frame.
func (r *RecognitionResponse) IsError() bool {
	return r.Status == "error"
}

// Identity returns the first recognized identity, or "" when none.
func (r *RecognitionResponse) Identity() string {
	if len(r.Result) == 0 {
		return ""
	}
	return r.Result[0].Identity
}

// ParseRecognitionResponse decodes a recognition service frame.
func ParseRecognitionResponse(data []byte) (*RecognitionResponse, error) {
	var resp RecognitionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse recognition response: %w", err)
	}
	return &resp, nil
}

// =============================================================================
// Kiosk UI messages
// =============================================================================

// MessageType identifies the type of a UI message.
type MessageType string

const (
	TypeIdentity MessageType = "identity" // current member changed
	TypeLevel    MessageType = "level"    // face level changed
	TypeMembers  MessageType = "members"  // member list refreshed
	TypeStatus   MessageType = "status"   // connection or camera status
	TypeFrame    MessageType = "frame"    // overlay preview frame
)

// Message is the base wrapper for all UI messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v.
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON UI message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// LevelData carries the face level.
type LevelData struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// StatusData carries process health for the kiosk UI.
type StatusData struct {
	Transport   string `json:"transport"`
	CameraError string `json:"camera_error,omitempty"`
	Pending     bool   `json:"pending"`
}

// FrameData carries an overlay preview frame.
type FrameData struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"` // "jpeg"
	Data   string `json:"data"`   // base64 encoded
}

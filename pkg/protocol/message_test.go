package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewRecognitionRequest_UUID(t *testing.T) {
	tests := []struct {
		name     string
		memberID string
		want     string
	}{
		{"unknown member", "", `"uuid":null`},
		{"known member", "abc", `"uuid":"abc"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(NewRecognitionRequest("aGk=", 1, tt.memberID))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			s := string(data)
			if !strings.Contains(s, tt.want) {
				t.Errorf("encoded %s, want it to contain %s", s, tt.want)
			}
			if !strings.Contains(s, `"image":"aGk="`) || !strings.Contains(s, `"level":1`) {
				t.Errorf("encoded %s missing image or level", s)
			}
		})
	}
}

func TestParseRecognitionResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		identity string
		isNew    bool
		isError  bool
	}{
		{"empty result", `{"result":[],"is_new":false}`, "", false, false},
		{"known", `{"result":[{"identity":"abc","distance":0.21,"target_x":10}],"is_new":false}`, "abc", false, false},
		{"new", `{"result":[{"identity":"xyz"}],"is_new":true}`, "xyz", true, false},
		{"service error", `{"status":"error","message":"no face"}`, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseRecognitionResponse([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseRecognitionResponse: %v", err)
			}
			if got := resp.Identity(); got != tt.identity {
				t.Errorf("Identity() = %q, want %q", got, tt.identity)
			}
			if resp.IsNew != tt.isNew {
				t.Errorf("IsNew = %v, want %v", resp.IsNew, tt.isNew)
			}
			if resp.IsError() != tt.isError {
				t.Errorf("IsError() = %v, want %v", resp.IsError(), tt.isError)
			}
		})
	}
}

func TestParseRecognitionResponse_OptionalFields(t *testing.T) {
	resp, err := ParseRecognitionResponse([]byte(`{"result":[{"identity":"abc","distance":0.3}],"is_new":false}`))
	if err != nil {
		t.Fatal(err)
	}
	m := resp.Result[0]
	if m.Distance == nil || *m.Distance != 0.3 {
		t.Errorf("Distance = %v, want 0.3", m.Distance)
	}
	if m.TargetX != nil {
		t.Error("TargetX should be nil when absent")
	}
}

func TestParseRecognitionResponse_Invalid(t *testing.T) {
	if _, err := ParseRecognitionResponse([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
	}{
		{"level", TypeLevel, LevelData{Level: 2, Name: "CLOSE", Color: "#00ff00"}},
		{"status", TypeStatus, StatusData{Transport: "OPEN"}},
		{"nil data", TypeIdentity, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if err != nil {
				t.Fatalf("NewMessage() error = %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("timestamp should be set")
			}
		})
	}
}

func TestMessage_BytesAndParse(t *testing.T) {
	msg, err := NewMessage(TypeLevel, LevelData{Level: 1, Name: "NEAR", Color: "#ff0000"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := msg.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	var level LevelData
	if err := parsed.ParseData(&level); err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if parsed.Type != TypeLevel || level.Level != 1 || level.Name != "NEAR" {
		t.Errorf("parsed = %+v / %+v", parsed, level)
	}
}

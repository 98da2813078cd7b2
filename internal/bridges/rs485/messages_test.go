package rs485

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCommandMessageUnmarshal(t *testing.T) {
	payload := []byte(`{
		"id": "cmd-42",
		"timestamp": "2026-03-01T10:00:00Z",
		"device_id": "hall-1",
		"command": "set_position",
		"parameters": {"position": 75},
		"source": "api"
	}`)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if cmd.ID != "cmd-42" {
		t.Errorf("ID = %q, want cmd-42", cmd.ID)
	}
	if cmd.DeviceID != "hall-1" {
		t.Errorf("DeviceID = %q, want hall-1", cmd.DeviceID)
	}
	if cmd.Command != "set_position" {
		t.Errorf("Command = %q, want set_position", cmd.Command)
	}
	if pos := cmd.Parameters["position"]; pos != float64(75) {
		t.Errorf("position = %v, want 75", pos)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !cmd.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", cmd.Timestamp, want)
	}
}

func TestCommandMessageRejectsBadTimestamp(t *testing.T) {
	var cmd CommandMessage
	err := json.Unmarshal([]byte(`{"id":"x","timestamp":"yesterday"}`), &cmd)
	if err == nil {
		t.Fatal("unmarshal succeeded with invalid timestamp")
	}
}

func TestNewAckErrorMapsTimeoutStatus(t *testing.T) {
	cmd := CommandMessage{ID: "cmd-1", DeviceID: "hall-1"}

	ack := NewAckError(cmd, ErrCodeTimeout, "device did not respond")
	if ack.Status != AckTimeout {
		t.Errorf("Status = %q, want timeout", ack.Status)
	}

	ack = NewAckError(cmd, ErrCodeInvalidCommand, "bad command")
	if ack.Status != AckFailed {
		t.Errorf("Status = %q, want failed", ack.Status)
	}
	if ack.CommandID != "cmd-1" || ack.DeviceID != "hall-1" {
		t.Errorf("ack correlation = %q/%q", ack.CommandID, ack.DeviceID)
	}
	if ack.Protocol != "rs485" {
		t.Errorf("Protocol = %q, want rs485", ack.Protocol)
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CommandTopic("hall-1"), "graylogic/command/rs485/hall-1"},
		{AckTopic("hall-1"), "graylogic/ack/rs485/hall-1"},
		{StateTopic("hall-1"), "graylogic/state/rs485/hall-1"},
		{HealthTopic(), "graylogic/health/rs485"},
		{CommandSubscribeTopic(), "graylogic/command/rs485/+"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewLWTMessage(t *testing.T) {
	msg := NewLWTMessage("rs485")
	if msg.Status != HealthOffline {
		t.Errorf("Status = %q, want offline", msg.Status)
	}
	if msg.Reason != "unexpected_disconnect" {
		t.Errorf("Reason = %q", msg.Reason)
	}
}

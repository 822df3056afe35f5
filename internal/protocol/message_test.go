package protocol

import (
	"encoding/json"
	"testing"
)

func TestValidRoomCode(t *testing.T) {
	valid := []string{"000000", "482913", "999999"}
	for _, code := range valid {
		if !ValidRoomCode(code) {
			t.Errorf("ValidRoomCode(%q) = false, want true", code)
		}
	}

	invalid := []string{"", "12345", "1234567", "12a456", "12 456", "-12345", "１２３４５６"}
	for _, code := range invalid {
		if ValidRoomCode(code) {
			t.Errorf("ValidRoomCode(%q) = true, want false", code)
		}
	}
}

func TestGenerateRoomCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateRoomCode()
		if !ValidRoomCode(code) {
			t.Fatalf("GenerateRoomCode() = %q, not a valid six-digit code", code)
		}
	}
}

func TestMessageOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(&Message{Type: MessageTypeLeaveRoom})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"leave-room"}` {
		t.Errorf("unexpected wire form: %s", data)
	}
}

func TestMessageFieldNames(t *testing.T) {
	raw := `{
		"type": "signal",
		"roomCode": "482913",
		"targetUserId": "user_b",
		"fromUserId": "user_a",
		"payload": {"type": "offer", "sdp": "v=0"}
	}`

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageTypeSignal || msg.RoomCode != "482913" {
		t.Errorf("unexpected header fields: %+v", msg)
	}
	if msg.TargetUserID != "user_b" || msg.FromUserID != "user_a" {
		t.Errorf("unexpected routing fields: %+v", msg)
	}

	var payload SignalPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Type != SignalTypeOffer || payload.SDP != "v=0" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

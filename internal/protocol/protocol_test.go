package protocol

import (
	"encoding/json"
	"testing"
)

func TestEncodeWithoutPayload(t *testing.T) {
	frame, err := Encode(EventRequestPastMessages, nil)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if string(frame) != `{"event":"requestPastMessages"}` {
		t.Fatalf("unexpected frame: %s", frame)
	}
}

func TestDecodeChatMessage(t *testing.T) {
	env, err := Decode([]byte(`{"event":"chatMessage","data":{"user":{"id":"u1","username":"ann"},"message":"hi"}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if env.Event != EventChatMessage {
		t.Fatalf("unexpected event %q", env.Event)
	}
	var msg ChatMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !msg.User.Valid() || msg.Message != "hi" {
		t.Fatalf("unexpected payload: %+v", msg)
	}
}

func TestDecodeRejectsMissingEvent(t *testing.T) {
	if _, err := Decode([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected error for frame without event")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for garbage frame")
	}
}

func TestUserRefValid(t *testing.T) {
	cases := []struct {
		name string
		user *UserRef
		want bool
	}{
		{"nil", nil, false},
		{"missing username", &UserRef{ID: "u1"}, false},
		{"missing id", &UserRef{Username: "ann"}, false},
		{"complete", &UserRef{ID: "u1", Username: "ann"}, true},
	}
	for _, tc := range cases {
		if got := tc.user.Valid(); got != tc.want {
			t.Fatalf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

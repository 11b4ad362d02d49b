package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeClientMessage_JoinSession(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"join-session","session_id":"s_1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	join, ok := msg.(ClientJoinSession)
	if !ok {
		t.Fatalf("msg type=%T, want ClientJoinSession", msg)
	}
	if join.SessionID != "s_1" {
		t.Fatalf("session_id=%q, want s_1", join.SessionID)
	}
}

func TestDecodeClientMessage_AudioChunkRequiresPayload(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":"audio-chunk","session_id":"s_1"}`))
	if err == nil {
		t.Fatalf("expected error for missing audio_b64")
	}
	de, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("err type=%T, want *DecodeError", err)
	}
	if de.Param != "audio_b64" {
		t.Fatalf("param=%q, want audio_b64", de.Param)
	}
}

func TestDecodeClientMessage_CommitAudio(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"commit-audio","session_id":"s_9"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	commit, ok := msg.(ClientCommitAudio)
	if !ok {
		t.Fatalf("msg type=%T, want ClientCommitAudio", msg)
	}
	if commit.SessionID != "s_9" {
		t.Fatalf("session_id=%q", commit.SessionID)
	}
}

func TestDecodeClientMessage_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{`},
		{"missing type", `{"session_id":"s_1"}`},
		{"unknown type", `{"type":"dance","session_id":"s_1"}`},
		{"join without session", `{"type":"join-session"}`},
		{"commit without session", `{"type":"commit-audio"}`},
	}
	for _, tc := range cases {
		if _, err := DecodeClientMessage([]byte(tc.raw)); err == nil {
			t.Fatalf("%s: expected decode error", tc.name)
		}
	}
}

func TestServerFrames_MarshalTypes(t *testing.T) {
	raw, err := json.Marshal(NewAIAudio("AAAA", 42))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "ai-audio" {
		t.Fatalf("type=%v, want ai-audio", decoded["type"])
	}

	raw, err = json.Marshal(NewError("backend_gone", "backend closed", true))
	if err != nil {
		t.Fatalf("marshal error frame: %v", err)
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal error frame: %v", err)
	}
	if decoded["type"] != "error" || decoded["close"] != true {
		t.Fatalf("error frame=%v", decoded)
	}
}

package realtime

import (
	"encoding/json"
	"testing"
)

func TestDecodeEvent_Created(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"session.created","session":{"id":"sess_abc"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	created, ok := ev.(CreatedEvent)
	if !ok {
		t.Fatalf("event type=%T, want CreatedEvent", ev)
	}
	if created.SessionID != "sess_abc" {
		t.Fatalf("session id=%q", created.SessionID)
	}
}

func TestDecodeEvent_AudioDelta(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"response.audio.delta","delta":"UERG"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	delta, ok := ev.(AudioDeltaEvent)
	if !ok {
		t.Fatalf("event type=%T, want AudioDeltaEvent", ev)
	}
	if delta.DeltaB64 != "UERG" {
		t.Fatalf("delta=%q", delta.DeltaB64)
	}
}

func TestDecodeEvent_Transcripts(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"hola"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in, ok := ev.(InputTranscriptEvent); !ok || in.Text != "hola" {
		t.Fatalf("event=%T %#v", ev, ev)
	}

	ev, err = decodeEvent([]byte(`{"type":"response.audio_transcript.done","transcript":"buenos dias"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out, ok := ev.(OutputTranscriptEvent); !ok || out.Text != "buenos dias" {
		t.Fatalf("event=%T %#v", ev, ev)
	}
}

func TestDecodeEvent_ToolCall(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"response.function_call_arguments.done","call_id":"call_1","name":"extract_memory","arguments":"{\"key\":\"granddaughter\"}"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	call, ok := ev.(ToolCallEvent)
	if !ok {
		t.Fatalf("event type=%T, want ToolCallEvent", ev)
	}
	if call.CallID != "call_1" || call.Name != "extract_memory" {
		t.Fatalf("call=%+v", call)
	}
	var args map[string]any
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		t.Fatalf("arguments not valid json: %v", err)
	}
	if args["key"] != "granddaughter" {
		t.Fatalf("args=%v", args)
	}
}

func TestDecodeEvent_DoneCarriesUsage(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"response.done","response":{"usage":{"input_tokens":120,"output_tokens":45}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	done, ok := ev.(DoneEvent)
	if !ok {
		t.Fatalf("event type=%T, want DoneEvent", ev)
	}
	if done.InputTokens != 120 || done.OutputTokens != 45 {
		t.Fatalf("usage=%+v", done)
	}
}

func TestDecodeEvent_ErrorAndUnknown(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"error","error":{"code":"overloaded","message":"try later","fatal":true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	errEv, ok := ev.(ErrorEvent)
	if !ok {
		t.Fatalf("event type=%T, want ErrorEvent", ev)
	}
	if !errEv.Fatal || errEv.Code != "overloaded" {
		t.Fatalf("error event=%+v", errEv)
	}

	ev, err = decodeEvent([]byte(`{"type":"rate_limits.updated","limits":[]}`))
	if err != nil {
		t.Fatalf("decode unknown: %v", err)
	}
	unk, ok := ev.(UnknownEvent)
	if !ok {
		t.Fatalf("event type=%T, want UnknownEvent", ev)
	}
	if unk.Type != "rate_limits.updated" {
		t.Fatalf("unknown type=%q", unk.Type)
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	if _, err := decodeEvent([]byte(`{`)); err == nil {
		t.Fatalf("expected envelope error")
	}
	if _, err := decodeEvent([]byte(`{"delta":"x"}`)); err == nil {
		t.Fatalf("expected missing type error")
	}
}

func TestWebsocketEndpoint(t *testing.T) {
	got, err := websocketEndpoint("https://backend.example.com/v1/realtime", "voz-1")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if got != "wss://backend.example.com/v1/realtime?model=voz-1" {
		t.Fatalf("endpoint=%q", got)
	}

	got, err = websocketEndpoint("ws://localhost:9100", "")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if got != "ws://localhost:9100" {
		t.Fatalf("endpoint=%q", got)
	}

	if _, err := websocketEndpoint("ftp://nope", ""); err == nil {
		t.Fatalf("expected scheme error")
	}
}

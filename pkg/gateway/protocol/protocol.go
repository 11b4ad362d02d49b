package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// ClientJoinSession binds a websocket connection to an existing session.
// It must be the first frame on a stream connection.
type ClientJoinSession struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ClientAudioChunk carries one inbound microphone chunk.
type ClientAudioChunk struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	AudioB64    string `json:"audio_b64"`
	TimestampMS *int64 `json:"timestamp_ms,omitempty"`
}

// ClientCommitAudio signals end of utterance; the backend runs turn detection
// over everything appended since the previous commit.
type ClientCommitAudio struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// DecodeClientMessage strictly decodes an inbound client frame. Unknown or
// malformed frames are decode errors, never panics.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "join-session":
		var msg ClientJoinSession
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid join-session frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("join-session.session_id is required", "session_id")
		}
		return msg, nil
	case "audio-chunk":
		var msg ClientAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio-chunk frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("audio-chunk.session_id is required", "session_id")
		}
		if strings.TrimSpace(msg.AudioB64) == "" {
			return nil, badRequest("audio-chunk.audio_b64 is required", "audio_b64")
		}
		return msg, nil
	case "commit-audio":
		var msg ClientCommitAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid commit-audio frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("commit-audio.session_id is required", "session_id")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ServerSessionJoined acknowledges a join-session frame.
type ServerSessionJoined struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// ServerAIAudio re-emits one backend audio delta, verbatim and in arrival order.
type ServerAIAudio struct {
	Type        string `json:"type"`
	DeltaB64    string `json:"delta_b64"`
	TimestampMS int64  `json:"timestamp_ms,omitempty"`
}

// ServerTranscript reports one completed utterance, either role.
type ServerTranscript struct {
	Type        string `json:"type"`
	Role        string `json:"role"`
	Text        string `json:"text"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// ServerSessionStatus is sent after every turn and on demand.
type ServerSessionStatus struct {
	Type       string     `json:"type"`
	State      string     `json:"state"`
	TurnCount  int        `json:"turn_count"`
	TokenUsage TokenUsage `json:"token_usage"`
}

// TokenUsage is advisory accounting from backend response.done events.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// MediaItem is one photo surfaced through the sequential pager.
type MediaItem struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Caption  string   `json:"caption,omitempty"`
	Names    []string `json:"names,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// ServerMediaEvent tells the client to display media items.
type ServerMediaEvent struct {
	Type    string      `json:"type"`
	Items   []MediaItem `json:"items"`
	Reason  string      `json:"reason,omitempty"`
	Context string      `json:"context,omitempty"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}

func NewSessionJoined(sessionID, state string) ServerSessionJoined {
	return ServerSessionJoined{Type: "session-joined", SessionID: sessionID, State: state}
}

func NewAIAudio(deltaB64 string, timestampMS int64) ServerAIAudio {
	return ServerAIAudio{Type: "ai-audio", DeltaB64: deltaB64, TimestampMS: timestampMS}
}

func NewTranscript(role, text string, timestampMS int64) ServerTranscript {
	return ServerTranscript{Type: "transcript", Role: role, Text: text, TimestampMS: timestampMS}
}

func NewSessionStatus(state string, turnCount int, usage TokenUsage) ServerSessionStatus {
	return ServerSessionStatus{Type: "session-status", State: state, TurnCount: turnCount, TokenUsage: usage}
}

func NewMediaEvent(items []MediaItem, reason, context string) ServerMediaEvent {
	return ServerMediaEvent{Type: "media-event", Items: items, Reason: reason, Context: context}
}

func NewError(code, message string, close bool) ServerError {
	return ServerError{Type: "error", Code: code, Message: message, Close: close}
}

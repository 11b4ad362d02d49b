package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SessionConfig is the configuration frame payload sent on session.update.
// The first update after dialing establishes modalities, instructions, voice,
// audio formats, turn-detection thresholds and the tool schema; later updates
// replace the active instructions in place without tearing down the transport.
type SessionConfig struct {
	Modalities        []string       `json:"modalities,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitempty"`
	Tools             []ToolDef      `json:"tools,omitempty"`
	Transcription     *Transcription `json:"input_audio_transcription,omitempty"`
}

type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

type Transcription struct {
	Model string `json:"model"`
}

// ToolDef declares one callable tool to the backend.
type ToolDef struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type sessionUpdateFrame struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type audioAppendFrame struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type audioCommitFrame struct {
	Type string `json:"type"`
}

type responseCreateFrame struct {
	Type     string           `json:"type"`
	Response *responseOptions `json:"response,omitempty"`
}

type responseOptions struct {
	Instructions string `json:"instructions,omitempty"`
}

type responseCancelFrame struct {
	Type string `json:"type"`
}

type itemCreateFrame struct {
	Type string       `json:"type"`
	Item functionItem `json:"item"`
}

type functionItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// Event is a decoded backend event.
type Event interface {
	eventType() string
}

// CreatedEvent signals the backend accepted the session.
type CreatedEvent struct {
	SessionID string
}

func (e CreatedEvent) eventType() string { return "session.created" }

// UpdatedEvent acknowledges an in-place session.update.
type UpdatedEvent struct{}

func (e UpdatedEvent) eventType() string { return "session.updated" }

// AudioDeltaEvent carries one chunk of synthesized speech, base64-encoded.
type AudioDeltaEvent struct {
	DeltaB64 string
}

func (e AudioDeltaEvent) eventType() string { return "response.audio.delta" }

// InputTranscriptEvent is the completed transcript of a user utterance.
type InputTranscriptEvent struct {
	Text string
}

func (e InputTranscriptEvent) eventType() string {
	return "conversation.item.input_audio_transcription.completed"
}

// OutputTranscriptEvent is the completed transcript of an assistant utterance.
type OutputTranscriptEvent struct {
	Text string
}

func (e OutputTranscriptEvent) eventType() string { return "response.audio_transcript.done" }

// ToolCallEvent is a backend-issued tool call. Exactly one result must be sent
// for CallID before the conversation proceeds past this point.
type ToolCallEvent struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

func (e ToolCallEvent) eventType() string { return "response.function_call_arguments.done" }

// DoneEvent closes one response and reports advisory token usage.
type DoneEvent struct {
	InputTokens  int64
	OutputTokens int64
}

func (e DoneEvent) eventType() string { return "response.done" }

// ErrorEvent is a backend-reported error. Fatal reports whether the backend
// considers the session unrecoverable.
type ErrorEvent struct {
	Code    string
	Message string
	Fatal   bool
}

func (e ErrorEvent) eventType() string { return "error" }

// UnknownEvent preserves unrecognized frames so callers can log and skip them.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) eventType() string { return e.Type }

func decodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode backend event envelope: %w", err)
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, fmt.Errorf("backend event missing type")
	}

	switch typ {
	case "session.created":
		var frame struct {
			Session struct {
				ID string `json:"id"`
			} `json:"session"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode session.created: %w", err)
		}
		return CreatedEvent{SessionID: frame.Session.ID}, nil
	case "session.updated":
		return UpdatedEvent{}, nil
	case "response.audio.delta":
		var frame struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode response.audio.delta: %w", err)
		}
		return AudioDeltaEvent{DeltaB64: frame.Delta}, nil
	case "conversation.item.input_audio_transcription.completed":
		var frame struct {
			Transcript string `json:"transcript"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode input transcription: %w", err)
		}
		return InputTranscriptEvent{Text: frame.Transcript}, nil
	case "response.audio_transcript.done":
		var frame struct {
			Transcript string `json:"transcript"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode output transcript: %w", err)
		}
		return OutputTranscriptEvent{Text: frame.Transcript}, nil
	case "response.function_call_arguments.done":
		var frame struct {
			CallID    string `json:"call_id"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode tool call: %w", err)
		}
		return ToolCallEvent{
			CallID:    frame.CallID,
			Name:      frame.Name,
			Arguments: json.RawMessage(frame.Arguments),
		}, nil
	case "response.done":
		var frame struct {
			Response struct {
				Usage struct {
					InputTokens  int64 `json:"input_tokens"`
					OutputTokens int64 `json:"output_tokens"`
				} `json:"usage"`
			} `json:"response"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode response.done: %w", err)
		}
		return DoneEvent{
			InputTokens:  frame.Response.Usage.InputTokens,
			OutputTokens: frame.Response.Usage.OutputTokens,
		}, nil
	case "error":
		var frame struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
				Fatal   bool   `json:"fatal"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode backend error: %w", err)
		}
		return ErrorEvent{
			Code:    frame.Error.Code,
			Message: frame.Error.Message,
			Fatal:   frame.Error.Fatal,
		}, nil
	default:
		return UnknownEvent{
			Type: typ,
			Raw:  append(json.RawMessage(nil), data...),
		}, nil
	}
}

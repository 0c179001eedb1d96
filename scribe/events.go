package scribe

import (
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	TypeSessionStarted      = "session_started"
	TypePartialTranscript   = "partial_transcript"
	TypeCommittedTranscript = "committed_transcript"
	TypeInputError          = "input_error"
	TypeError               = "error"
	TypeAuthError           = "auth_error"

	// TypeTransportError is produced locally, never sent by the backend.
	TypeTransportError = "transport_error"

	// TypeInputAudioChunk is the only outbound message type.
	TypeInputAudioChunk = "input_audio_chunk"
)

// Event is a discriminated union for backend events.
// Check the concrete type via type switch.
type Event interface {
	eventType() string
}

// SessionStartedEvent is the first frame of every session.
type SessionStartedEvent struct {
	SessionID string          `json:"session_id"`
	Config    json.RawMessage `json:"config,omitempty"`
}

func (SessionStartedEvent) eventType() string { return TypeSessionStarted }

// PartialTranscriptEvent carries provisional text that may still change.
type PartialTranscriptEvent struct {
	Text        string `json:"text"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

func (PartialTranscriptEvent) eventType() string { return TypePartialTranscript }

// CommittedTranscriptEvent carries final text for one segment.
type CommittedTranscriptEvent struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	CreatedAtMs int64   `json:"created_at_ms"`
}

func (CommittedTranscriptEvent) eventType() string { return TypeCommittedTranscript }

// InputErrorEvent reports a rejected audio frame.
type InputErrorEvent struct {
	ErrorMessage string `json:"error_message"`
}

func (InputErrorEvent) eventType() string { return TypeInputError }

// Message returns a displayable description.
func (e InputErrorEvent) Message() string {
	return firstNonEmpty(e.ErrorMessage, "", "invalid audio input")
}

// ErrorEvent reports a backend failure.
type ErrorEvent struct {
	ErrorMessage string `json:"error_message"`
	Err          string `json:"error"`
}

func (ErrorEvent) eventType() string { return TypeError }

// Message returns a displayable description.
func (e ErrorEvent) Message() string {
	return firstNonEmpty(e.ErrorMessage, e.Err, "unknown scribe error")
}

// AuthErrorEvent reports a rejected API key.
type AuthErrorEvent struct {
	ErrorMessage string `json:"error_message"`
	Err          string `json:"error"`
}

func (AuthErrorEvent) eventType() string { return TypeAuthError }

// Message returns a displayable description.
func (e AuthErrorEvent) Message() string {
	return firstNonEmpty(e.ErrorMessage, e.Err, "authentication failed")
}

// TransportErrorEvent is broadcast when the connection fails or a connect
// attempt is rejected.
type TransportErrorEvent struct {
	Message string
}

func (TransportErrorEvent) eventType() string { return TypeTransportError }

// UnknownEvent holds events we don't recognize.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) eventType() string { return e.Type }

// ParseEvent unmarshals a text frame into the matching Event type.
func ParseEvent(data []byte) (Event, error) {
	var header struct {
		MessageType string `json:"message_type"`
		Type        string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, err
	}
	kind := header.MessageType
	if kind == "" {
		kind = header.Type
	}

	switch kind {
	case TypeSessionStarted:
		return decode[SessionStartedEvent](data)
	case TypePartialTranscript:
		return decode[PartialTranscriptEvent](data)
	case TypeCommittedTranscript:
		return decode[CommittedTranscriptEvent](data)
	case TypeInputError:
		return decode[InputErrorEvent](data)
	case TypeError:
		return decode[ErrorEvent](data)
	case TypeAuthError:
		return decode[AuthErrorEvent](data)
	default:
		return UnknownEvent{Type: kind, Raw: data}, nil
	}
}

func decode[T Event](data []byte) (Event, error) {
	var e T
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// ExtractErrorMessage pulls "<type>: <message>" out of an arbitrary frame.
// It reports false when the frame names neither a type nor a message.
func ExtractErrorMessage(data []byte) (string, bool) {
	var v struct {
		MessageType  string `json:"message_type"`
		Type         string `json:"type"`
		ErrorMessage string `json:"error_message"`
		Err          any    `json:"error"`
		Msg          string `json:"message"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return "", false
	}

	kind := firstNonEmpty(v.MessageType, v.Type, "unknown")
	errText, _ := v.Err.(string)
	msg := firstNonEmpty(v.ErrorMessage, errText, v.Msg)

	switch {
	case msg != "":
		return fmt.Sprintf("%s: %s", kind, msg), true
	case kind != "unknown":
		return fmt.Sprintf("%s: %s", kind, data), true
	default:
		return "", false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// audioChunk is the outbound audio frame.
type audioChunk struct {
	MessageType string `json:"message_type"`
	Audio       string `json:"audio_base_64"`
	SampleRate  int    `json:"sample_rate"`
}

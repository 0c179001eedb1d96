// Package types provides shared type definitions for the application.
package types

// Event names emitted to the frontend.
const (
	EventPartialTranscript   = "partial_transcript"
	EventCommittedTranscript = "committed_transcript"
	EventRecordingState      = "recording_state"
	EventRecordingError      = "recording_error"
	EventInputRouteChanged   = "input_route_changed"
	EventSessionStarted      = "session_started"
)

// RecordingState is the value carried by EventRecordingState.
type RecordingState string

const (
	StateIdle       RecordingState = "Idle"
	StateConnecting RecordingState = "Connecting"
	StateListening  RecordingState = "Listening"
	StateRecording  RecordingState = "Recording"
	StateProcessing RecordingState = "Processing"
	StateInjecting  RecordingState = "Injecting"
	StateError      RecordingState = "Error"
)

// InputRoute tells the frontend where committed text goes.
type InputRoute string

const (
	RouteUndetermined  InputRoute = "undetermined"
	RouteCursorInput   InputRoute = "cursor_input"
	RouteClipboardMode InputRoute = "clipboard_mode"
)

// Emitter delivers one-way events to the UI shell.
type Emitter interface {
	Emit(name string, data any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(name string, data any)

// Emit calls f(name, data).
func (f EmitterFunc) Emit(name string, data any) { f(name, data) }

// MetricSummary summarizes one rolling latency window.
type MetricSummary struct {
	Samples   int    `json:"samples"`
	AverageMs uint64 `json:"averageMs"`
	P95Ms     uint64 `json:"p95Ms"`
	MaxMs     uint64 `json:"maxMs"`
}

// PerformanceReport is returned by GetPerformanceReport.
type PerformanceReport struct {
	GeneratedAtMs               int64         `json:"generatedAtMs"`
	AudioProcessing             MetricSummary `json:"audioProcessing"`
	NetworkSend                 MetricSummary `json:"networkSend"`
	Injection                   MetricSummary `json:"injection"`
	EndToEnd                    MetricSummary `json:"endToEnd"`
	DroppedAudioChunks          uint64        `json:"droppedAudioChunks"`
	DroppedCommittedTranscripts uint64        `json:"droppedCommittedTranscripts"`
	SentAudioChunks             uint64        `json:"sentAudioChunks"`
	SentAudioBatches            uint64        `json:"sentAudioBatches"`
	Warnings                    []string      `json:"warnings"`
}

// TranscriptRecord is a committed transcript kept in history.
type TranscriptRecord struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"sessionId"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Route      string  `json:"route"`
	CreatedAt  int64   `json:"createdAt"` // Unix milliseconds
}

// Session timeline kinds.
const (
	SessionStarted = "started"
	SessionStopped = "stopped"
	SessionFailed  = "failed"
)

// SessionEvent is one entry in the recording timeline.
type SessionEvent struct {
	RecordingID string `json:"recordingId"`
	SessionID   string `json:"sessionId"`
	Kind        string `json:"kind"`
	Detail      string `json:"detail"`
	AtMs        int64  `json:"atMs"`
}

package scribe

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultURL is the realtime speech-to-text endpoint.
	DefaultURL = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	// DefaultModel is the realtime transcription model.
	DefaultModel = "scribe_v2_realtime"

	// SampleRate is the only input rate the session is opened with.
	SampleRate = 16000

	defaultAudioFormat         = "pcm_16000"
	defaultCommitStrategy      = "vad"
	defaultVADThreshold        = 0.6
	defaultMinSpeechDurationMs = 180
	defaultMaxBufferDelayMs    = 1000
)

// URLOptions are the session parameters carried in the query string.
type URLOptions struct {
	ModelID             string
	LanguageCode        string
	CommitStrategy      string
	VADThreshold        float64
	MinSpeechDurationMs int
	MaxBufferDelayMs    int
}

// DefaultURLOptions returns the tuned session parameters.
func DefaultURLOptions() URLOptions {
	return URLOptions{
		ModelID:             DefaultModel,
		CommitStrategy:      defaultCommitStrategy,
		VADThreshold:        defaultVADThreshold,
		MinSpeechDurationMs: defaultMinSpeechDurationMs,
		MaxBufferDelayMs:    defaultMaxBufferDelayMs,
	}
}

// BuildURL appends the session query to base. An empty language is omitted.
func BuildURL(base string, opts URLOptions) (string, error) {
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	d := DefaultURLOptions()
	if opts.ModelID == "" {
		opts.ModelID = d.ModelID
	}
	if opts.CommitStrategy == "" {
		opts.CommitStrategy = d.CommitStrategy
	}
	if opts.VADThreshold == 0 {
		opts.VADThreshold = d.VADThreshold
	}
	if opts.MinSpeechDurationMs == 0 {
		opts.MinSpeechDurationMs = d.MinSpeechDurationMs
	}
	if opts.MaxBufferDelayMs == 0 {
		opts.MaxBufferDelayMs = d.MaxBufferDelayMs
	}

	q := u.Query()
	q.Set("model_id", opts.ModelID)
	q.Set("audio_format", defaultAudioFormat)
	q.Set("commit_strategy", opts.CommitStrategy)
	q.Set("vad_threshold", strconv.FormatFloat(opts.VADThreshold, 'f', -1, 64))
	q.Set("min_speech_duration_ms", strconv.Itoa(opts.MinSpeechDurationMs))
	q.Set("max_buffer_delay_ms", strconv.Itoa(opts.MaxBufferDelayMs))
	if lang := strings.TrimSpace(opts.LanguageCode); lang != "" {
		q.Set("language_code", lang)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

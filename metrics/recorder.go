package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"go.aimuz.me/dictate/internal/types"
)

// EndToEndP95Target is the latency above which the report carries a warning.
const EndToEndP95Target = 500 * time.Millisecond

const meterName = "go.aimuz.me/dictate/metrics"

// Recorder is the pipeline-wide metrics sink. All methods are safe for
// concurrent use.
type Recorder struct {
	mu sync.Mutex

	audioProcessing *Rolling
	networkSend     *Rolling
	injection       *Rolling
	endToEnd        *Rolling

	droppedAudioChunks          uint64
	droppedCommittedTranscripts uint64
	sentAudioChunks             uint64
	sentAudioBatches            uint64

	inst instruments
	now  func() time.Time
}

type instruments struct {
	latency metric.Float64Histogram
	dropped metric.Int64Counter
	sent    metric.Int64Counter
}

// NewRecorder creates a Recorder with the given window size. Instruments are
// registered on the global meter provider; when none is installed they are
// no-ops.
func NewRecorder(windowSize int) *Recorder {
	r := &Recorder{
		audioProcessing: NewRolling(windowSize),
		networkSend:     NewRolling(windowSize),
		injection:       NewRolling(windowSize),
		endToEnd:        NewRolling(windowSize),
		now:             time.Now,
	}
	if err := r.registerInstruments(otel.Meter(meterName)); err != nil {
		slog.Warn("register metric instruments", "error", err)
	}
	return r
}

func (r *Recorder) registerInstruments(m metric.Meter) error {
	latency, err := m.Float64Histogram("dictate.stage.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Per-stage pipeline latency"))
	if err != nil {
		return fmt.Errorf("latency histogram: %w", err)
	}
	dropped, err := m.Int64Counter("dictate.dropped",
		metric.WithDescription("Items dropped under backpressure"))
	if err != nil {
		return fmt.Errorf("dropped counter: %w", err)
	}
	sent, err := m.Int64Counter("dictate.audio.sent",
		metric.WithDescription("Audio chunks and batches sent to the backend"))
	if err != nil {
		return fmt.Errorf("sent counter: %w", err)
	}
	r.inst = instruments{latency: latency, dropped: dropped, sent: sent}
	return nil
}

func (r *Recorder) observe(stage string, d time.Duration) {
	if r.inst.latency == nil {
		return
	}
	r.inst.latency.Record(context.Background(), float64(d.Microseconds())/1000,
		metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordAudioProcessing records time spent turning one capture chunk into PCM.
func (r *Recorder) RecordAudioProcessing(d time.Duration) {
	r.mu.Lock()
	r.audioProcessing.Record(d)
	r.mu.Unlock()
	r.observe("audio_processing", d)
}

// RecordNetworkSend records one batch send of chunkCount chunks.
func (r *Recorder) RecordNetworkSend(d time.Duration, chunkCount int) {
	r.mu.Lock()
	r.networkSend.Record(d)
	r.sentAudioBatches++
	r.sentAudioChunks += uint64(chunkCount)
	r.mu.Unlock()

	r.observe("network_send", d)
	if r.inst.sent != nil {
		ctx := context.Background()
		r.inst.sent.Add(ctx, int64(chunkCount), metric.WithAttributes(attribute.String("unit", "chunk")))
		r.inst.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("unit", "batch")))
	}
}

// RecordInjection records one injection attempt.
func (r *Recorder) RecordInjection(d time.Duration) {
	r.mu.Lock()
	r.injection.Record(d)
	r.mu.Unlock()
	r.observe("injection", d)
}

// RecordEndToEnd records backend-creation-to-injection latency.
func (r *Recorder) RecordEndToEnd(d time.Duration) {
	r.mu.Lock()
	r.endToEnd.Record(d)
	r.mu.Unlock()
	r.observe("end_to_end", d)
}

// RecordAudioDrop adds n dropped audio chunks.
func (r *Recorder) RecordAudioDrop(n uint64) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	r.droppedAudioChunks += n
	r.mu.Unlock()
	if r.inst.dropped != nil {
		r.inst.dropped.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("kind", "audio_chunk")))
	}
}

// RecordCommittedDrop adds n committed transcripts dropped on queue overflow.
func (r *Recorder) RecordCommittedDrop(n uint64) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	r.droppedCommittedTranscripts += n
	r.mu.Unlock()
	if r.inst.dropped != nil {
		r.inst.dropped.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("kind", "committed_transcript")))
	}
}

// Report builds a snapshot of all windows and counters.
func (r *Recorder) Report() types.PerformanceReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := types.PerformanceReport{
		GeneratedAtMs:               r.now().UnixMilli(),
		AudioProcessing:             r.audioProcessing.Summary(),
		NetworkSend:                 r.networkSend.Summary(),
		Injection:                   r.injection.Summary(),
		EndToEnd:                    r.endToEnd.Summary(),
		DroppedAudioChunks:          r.droppedAudioChunks,
		DroppedCommittedTranscripts: r.droppedCommittedTranscripts,
		SentAudioChunks:             r.sentAudioChunks,
		SentAudioBatches:            r.sentAudioBatches,
		Warnings:                    []string{},
	}

	if rep.DroppedAudioChunks > 0 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("Dropped %d audio chunks due to backpressure.", rep.DroppedAudioChunks))
	}
	if rep.DroppedCommittedTranscripts > 0 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("Dropped %d committed transcripts because queue was full.", rep.DroppedCommittedTranscripts))
	}
	target := uint64(EndToEndP95Target.Milliseconds())
	if rep.EndToEnd.Samples > 0 && rep.EndToEnd.P95Ms > target {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("End-to-end P95 latency %dms exceeded target %dms.", rep.EndToEnd.P95Ms, target))
	}
	return rep
}

package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestRollingSummary(t *testing.T) {
	tests := []struct {
		name    string
		samples []int
		wantAvg uint64
		wantP95 uint64
		wantMax uint64
	}{
		{"empty", nil, 0, 0, 0},
		{"single", []int{7}, 7, 7, 7},
		{"ten", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5, 10, 10},
		{"twenty", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, 10, 19, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRolling(DefaultWindowSize)
			for _, s := range tt.samples {
				r.Record(time.Duration(s) * time.Millisecond)
			}
			got := r.Summary()
			if got.Samples != len(tt.samples) {
				t.Errorf("Samples = %d, want %d", got.Samples, len(tt.samples))
			}
			if got.AverageMs != tt.wantAvg {
				t.Errorf("AverageMs = %d, want %d", got.AverageMs, tt.wantAvg)
			}
			if got.P95Ms != tt.wantP95 {
				t.Errorf("P95Ms = %d, want %d", got.P95Ms, tt.wantP95)
			}
			if got.MaxMs != tt.wantMax {
				t.Errorf("MaxMs = %d, want %d", got.MaxMs, tt.wantMax)
			}
		})
	}
}

func TestRollingEvictsOldest(t *testing.T) {
	r := NewRolling(3)
	for _, ms := range []int{100, 1, 2, 3} {
		r.Record(time.Duration(ms) * time.Millisecond)
	}
	got := r.Summary()
	if got.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", got.Samples)
	}
	if got.MaxMs != 3 {
		t.Errorf("MaxMs = %d, want 3 (oldest sample should be evicted)", got.MaxMs)
	}
}

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder(DefaultWindowSize)

	r.RecordNetworkSend(20*time.Millisecond, 3)
	r.RecordNetworkSend(10*time.Millisecond, 1)
	r.RecordAudioDrop(2)
	r.RecordAudioDrop(0)
	r.RecordCommittedDrop(1)

	rep := r.Report()
	if rep.SentAudioBatches != 2 {
		t.Errorf("SentAudioBatches = %d, want 2", rep.SentAudioBatches)
	}
	if rep.SentAudioChunks != 4 {
		t.Errorf("SentAudioChunks = %d, want 4", rep.SentAudioChunks)
	}
	if rep.DroppedAudioChunks != 2 {
		t.Errorf("DroppedAudioChunks = %d, want 2", rep.DroppedAudioChunks)
	}
	if rep.DroppedCommittedTranscripts != 1 {
		t.Errorf("DroppedCommittedTranscripts = %d, want 1", rep.DroppedCommittedTranscripts)
	}
	if len(rep.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want 2 entries", rep.Warnings)
	}
}

func TestReportEndToEndWarning(t *testing.T) {
	r := NewRecorder(DefaultWindowSize)
	r.RecordEndToEnd(900 * time.Millisecond)

	rep := r.Report()
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], "900ms") {
		t.Fatalf("Warnings = %v, want one end-to-end warning", rep.Warnings)
	}

	r = NewRecorder(DefaultWindowSize)
	r.RecordEndToEnd(200 * time.Millisecond)
	if rep := r.Report(); len(rep.Warnings) != 0 {
		t.Fatalf("Warnings = %v, want none", rep.Warnings)
	}
}

package dictation

import (
	"sync/atomic"
	"time"

	"go.aimuz.me/dictate/internal/types"
	"go.aimuz.me/dictate/metrics"
)

// State is the runtime state shared by the dispatcher, sender and
// injection goroutines.
type State struct {
	Metrics *metrics.Recorder
	Queue   *CommittedQueue
	Tracker *PartialTracker
	Route   *RouteTracker

	recording atomic.Bool
	// Unix milliseconds of the last voiced chunk; 0 means none this session.
	lastVoice atomic.Int64

	now func() time.Time
}

// NewState returns idle runtime state.
func NewState(emitter types.Emitter, rec *metrics.Recorder, policy RewritePolicy) *State {
	if rec == nil {
		rec = metrics.NewRecorder(metrics.DefaultWindowSize)
	}
	return &State{
		Metrics: rec,
		Queue:   NewCommittedQueue(QueueCapacity),
		Tracker: NewPartialTracker(policy),
		Route:   NewRouteTracker(emitter),
		now:     time.Now,
	}
}

// Now returns the state's clock reading.
func (s *State) Now() time.Time { return s.now() }

// IsRecording reports whether a recording is active.
func (s *State) IsRecording() bool { return s.recording.Load() }

// MarkVoiceActivity stamps the last time speech was heard.
func (s *State) MarkVoiceActivity(t time.Time) {
	s.lastVoice.Store(t.UnixMilli())
}

// LastVoiceActivity returns the zero time when no speech was heard.
func (s *State) LastVoiceActivity() time.Time {
	ms := s.lastVoice.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// voiceActiveWithin reports whether speech was heard no more than d ago.
func (s *State) voiceActiveWithin(d time.Duration, now time.Time) bool {
	last := s.LastVoiceActivity()
	return !last.IsZero() && now.Sub(last) <= d
}

func (s *State) resetSession() {
	s.lastVoice.Store(0)
	s.Tracker.ResetForSession()
	s.Route.Reset()
}

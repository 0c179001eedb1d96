package dictation

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// Mode is how committed and partial text currently reach the user.
type Mode int

const (
	ModeUndetermined Mode = iota
	ModeRealtimeCursor
	ModeClipboardOnly
)

func (m Mode) String() string {
	switch m {
	case ModeRealtimeCursor:
		return "realtime_cursor"
	case ModeClipboardOnly:
		return "clipboard_only"
	default:
		return "undetermined"
	}
}

// Rewrite limits.
const (
	DefaultMaxBackspace = 12
	MaxMaxBackspace     = 64
	DefaultRewriteGap   = 140 * time.Millisecond
	MaxRewriteGap       = 2000 * time.Millisecond
)

// RewritePolicy controls whether live partials may correct text already
// typed into the focused application.
type RewritePolicy struct {
	Enabled      bool
	MaxBackspace int
	MinInterval  time.Duration
}

// DefaultRewritePolicy returns rewrites enabled with a 12 character budget.
func DefaultRewritePolicy() RewritePolicy {
	return RewritePolicy{
		Enabled:      true,
		MaxBackspace: DefaultMaxBackspace,
		MinInterval:  DefaultRewriteGap,
	}
}

// Edit is one change to the text on screen: delete Backspaces characters
// before the caret, then type Insert.
type Edit struct {
	Backspaces int
	Insert     string
}

// PartialTracker remembers what partial text has been typed so that the
// next partial can be applied as an append or a short rewrite.
type PartialTracker struct {
	mu          sync.Mutex
	policy      RewritePolicy
	injected    string
	disabled    bool
	lastRewrite time.Time
	mode        Mode
	pending     string

	// lastCommitted holds the previous commit without trailing punctuation
	// until a partial of a new segment arrives.
	lastCommitted string
	// touched is set once the current segment has been routed.
	touched bool
}

// NewPartialTracker returns a tracker in ModeUndetermined.
func NewPartialTracker(policy RewritePolicy) *PartialTracker {
	return &PartialTracker{policy: policy}
}

// SetPolicy replaces the rewrite policy for later partials.
func (t *PartialTracker) SetPolicy(p RewritePolicy) {
	t.mu.Lock()
	t.policy = p
	t.mu.Unlock()
}

// Plan computes the edit that turns the injected text into next. It returns
// false when nothing should be typed. Over-budget revisions disable the
// tracker until the next commit.
func (t *PartialTracker) Plan(next string, now time.Time) (Edit, bool) {
	next = strings.TrimSpace(next)
	if next == "" {
		return Edit{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lateLocked(next) || t.mode == ModeClipboardOnly || t.disabled {
		return Edit{}, false
	}
	if t.injected == "" {
		return Edit{Insert: next}, true
	}
	if delta, ok := strings.CutPrefix(next, t.injected); ok {
		if delta == "" {
			return Edit{}, false
		}
		return Edit{Insert: delta}, true
	}
	if !t.policy.Enabled {
		t.disabled = true
		slog.Info("live partial injection disabled after revision")
		return Edit{}, false
	}

	prefix := commonPrefixRunes(t.injected, next)
	backspaces := utf8.RuneCountInString(t.injected) - prefix
	switch {
	case backspaces <= 0:
		return Edit{}, false
	case backspaces > t.policy.MaxBackspace:
		t.disabled = true
		slog.Info("live partial injection disabled, rewrite over budget",
			"backspaces", backspaces, "max", t.policy.MaxBackspace)
		return Edit{}, false
	case t.policy.MinInterval > 0 && !t.lastRewrite.IsZero() && now.Sub(t.lastRewrite) < t.policy.MinInterval:
		return Edit{}, false
	}

	t.lastRewrite = now
	return Edit{Backspaces: backspaces, Insert: suffixFromRune(next, prefix)}, true
}

// Late reports whether next repeats the last committed segment, as when the
// backend sends a partial after its commit. The first partial that does not
// ends the suppression.
func (t *PartialTracker) Late(next string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lateLocked(strings.TrimSpace(next))
}

func (t *PartialTracker) lateLocked(next string) bool {
	if t.lastCommitted == "" {
		return false
	}
	if strings.HasPrefix(t.lastCommitted, trimTrailingPunct(next)) {
		return true
	}
	t.lastCommitted = ""
	return false
}

// Route picks the mode for the current segment given whether a caret is
// focused. Losing the caret switches to clipboard-only at once; a caret
// that comes back is used from the next segment on, so one segment never
// splits between the clipboard and the cursor.
func (t *PartialTracker) Route(caret bool) Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	first := !t.touched
	t.touched = true
	switch {
	case !caret:
		t.mode = ModeClipboardOnly
	case first && t.mode == ModeClipboardOnly && t.injected == "":
		t.mode = ModeUndetermined
		t.disabled = false
	}
	return t.mode
}

// Apply records that next is now on screen.
func (t *PartialTracker) Apply(next string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabled {
		return
	}
	t.injected = strings.TrimSpace(next)
	t.mode = ModeRealtimeCursor
}

// Fail records an injection failure. A tracker that never reached the
// cursor falls back to clipboard mode.
func (t *PartialTracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = true
	if t.mode == ModeUndetermined {
		t.mode = ModeClipboardOnly
	}
}

// Disable stops partial injection until the next commit.
func (t *PartialTracker) Disable() {
	t.mu.Lock()
	t.disabled = true
	t.mu.Unlock()
}

// SetMode overrides the injection mode.
func (t *PartialTracker) SetMode(m Mode) {
	t.mu.Lock()
	t.mode = m
	t.mu.Unlock()
}

// Mode returns the current injection mode.
func (t *PartialTracker) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Injected returns the partial text currently on screen.
func (t *PartialTracker) Injected() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.injected
}

// Disabled reports whether partials are suppressed until the next commit.
func (t *PartialTracker) Disabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disabled
}

// TakeInjected returns the injected text and resets the tracker for the
// next segment in one step. Partials that repeat committed are ignored
// afterwards.
func (t *PartialTracker) TakeInjected(committed string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.injected
	t.resetAfterCommitLocked()
	t.lastCommitted = trimTrailingPunct(strings.TrimSpace(committed))
	return s
}

// AppendPending adds a committed segment to the clipboard buffer and
// returns the whole buffer.
func (t *PartialTracker) AppendPending(segment string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = AppendPending(t.pending, segment)
	return t.pending
}

// Pending returns the clipboard buffer.
func (t *PartialTracker) Pending() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// ResetAfterCommit prepares for the next segment. Mode and the clipboard
// buffer survive.
func (t *PartialTracker) ResetAfterCommit() {
	t.mu.Lock()
	t.resetAfterCommitLocked()
	t.mu.Unlock()
}

func (t *PartialTracker) resetAfterCommitLocked() {
	t.injected = ""
	t.disabled = false
	t.lastRewrite = time.Time{}
	t.touched = false
}

// ResetForSession clears everything, including the clipboard buffer.
func (t *PartialTracker) ResetForSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetAfterCommitLocked()
	t.mode = ModeUndetermined
	t.pending = ""
	t.lastCommitted = ""
}

func trimTrailingPunct(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

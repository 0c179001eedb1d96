package dictation

import (
	"testing"
	"time"
)

func TestPartialTrackerPlan(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		policy    RewritePolicy
		setup     func(tr *PartialTracker)
		next      string
		now       time.Time
		want      Edit
		wantOK    bool
		wantState func(t *testing.T, tr *PartialTracker)
	}{
		{
			name:   "first partial appends everything",
			policy: DefaultRewritePolicy(),
			next:   "  hello ",
			now:    base,
			want:   Edit{Insert: "hello"},
			wantOK: true,
		},
		{
			name:   "extension is a pure append",
			policy: DefaultRewritePolicy(),
			setup:  func(tr *PartialTracker) { tr.Apply("hello") },
			next:   "hello world",
			now:    base,
			want:   Edit{Insert: " world"},
			wantOK: true,
		},
		{
			name:   "same text is a no-op",
			policy: DefaultRewritePolicy(),
			setup:  func(tr *PartialTracker) { tr.Apply("hello") },
			next:   "hello",
			now:    base,
		},
		{
			name:   "revision within budget rewrites the tail",
			policy: DefaultRewritePolicy(),
			setup:  func(tr *PartialTracker) { tr.Apply("modern test") },
			next:   "model test",
			now:    base,
			want:   Edit{Backspaces: 7, Insert: "l test"},
			wantOK: true,
		},
		{
			name:   "revision over budget disables",
			policy: RewritePolicy{Enabled: true, MaxBackspace: 3},
			setup:  func(tr *PartialTracker) { tr.Apply("modern test") },
			next:   "model test",
			now:    base,
			wantState: func(t *testing.T, tr *PartialTracker) {
				if !tr.Disabled() {
					t.Error("tracker should be disabled")
				}
				if tr.Injected() != "modern test" {
					t.Errorf("injected = %q, want untouched", tr.Injected())
				}
			},
		},
		{
			name:   "rewrite disabled by policy",
			policy: RewritePolicy{Enabled: false, MaxBackspace: 12},
			setup:  func(tr *PartialTracker) { tr.Apply("abc") },
			next:   "abd",
			now:    base,
			wantState: func(t *testing.T, tr *PartialTracker) {
				if !tr.Disabled() {
					t.Error("tracker should be disabled")
				}
			},
		},
		{
			name:   "clipboard only never types",
			policy: DefaultRewritePolicy(),
			setup:  func(tr *PartialTracker) { tr.SetMode(ModeClipboardOnly) },
			next:   "hello",
			now:    base,
		},
		{
			name:   "disabled until commit",
			policy: DefaultRewritePolicy(),
			setup:  func(tr *PartialTracker) { tr.Disable() },
			next:   "hello",
			now:    base,
		},
		{
			name:   "blank partial",
			policy: DefaultRewritePolicy(),
			next:   "   ",
			now:    base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewPartialTracker(tt.policy)
			if tt.setup != nil {
				tt.setup(tr)
			}
			got, ok := tr.Plan(tt.next, tt.now)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Plan() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
			if tt.wantState != nil {
				tt.wantState(t, tr)
			}
		})
	}
}

func TestPartialTrackerPureAppendNeverBackspaces(t *testing.T) {
	tr := NewPartialTracker(DefaultRewritePolicy())
	now := time.Unix(1_700_000_000, 0)
	text := ""
	for _, word := range []string{"the", " quick", " brown", " fox", " jumps"} {
		text += word
		edit, ok := tr.Plan(text, now)
		if !ok {
			t.Fatalf("Plan(%q) returned no edit", text)
		}
		if edit.Backspaces != 0 {
			t.Fatalf("Plan(%q) backspaces = %d, want 0", text, edit.Backspaces)
		}
		tr.Apply(text)
		now = now.Add(10 * time.Millisecond)
	}
	if tr.Injected() != "the quick brown fox jumps" {
		t.Errorf("injected = %q", tr.Injected())
	}
	if tr.Mode() != ModeRealtimeCursor {
		t.Errorf("mode = %v, want realtime_cursor", tr.Mode())
	}
}

func TestPartialTrackerRewriteInterval(t *testing.T) {
	tr := NewPartialTracker(DefaultRewritePolicy())
	now := time.Unix(1_700_000_000, 0)
	tr.Apply("abcd")

	if _, ok := tr.Plan("abce", now); !ok {
		t.Fatal("first rewrite should be planned")
	}
	tr.Apply("abce")

	if _, ok := tr.Plan("abcf", now.Add(50*time.Millisecond)); ok {
		t.Fatal("rewrite inside the interval should wait")
	}
	if tr.Disabled() {
		t.Fatal("waiting must not disable the tracker")
	}

	edit, ok := tr.Plan("abcf", now.Add(DefaultRewriteGap))
	if !ok || edit != (Edit{Backspaces: 1, Insert: "f"}) {
		t.Fatalf("Plan after interval = %+v, %v", edit, ok)
	}
}

func TestPartialTrackerFailAndReset(t *testing.T) {
	tr := NewPartialTracker(DefaultRewritePolicy())
	tr.Fail()
	if tr.Mode() != ModeClipboardOnly || !tr.Disabled() {
		t.Fatalf("after Fail: mode %v disabled %v", tr.Mode(), tr.Disabled())
	}

	tr.AppendPending("foo")
	tr.ResetAfterCommit()
	if tr.Disabled() {
		t.Error("ResetAfterCommit should re-enable")
	}
	if tr.Mode() != ModeClipboardOnly || tr.Pending() != "foo" {
		t.Errorf("ResetAfterCommit kept mode %v pending %q", tr.Mode(), tr.Pending())
	}

	tr.ResetForSession()
	if tr.Mode() != ModeUndetermined || tr.Pending() != "" || tr.Injected() != "" {
		t.Errorf("ResetForSession left mode %v pending %q injected %q", tr.Mode(), tr.Pending(), tr.Injected())
	}

	// A tracker already typing at the cursor stays in cursor mode on failure.
	tr.Apply("hello")
	tr.Fail()
	if tr.Mode() != ModeRealtimeCursor {
		t.Errorf("mode = %v, want realtime_cursor", tr.Mode())
	}
	tr.Apply("hello world")
	if tr.Injected() != "hello" {
		t.Errorf("Apply while disabled changed injected to %q", tr.Injected())
	}
}

func TestPartialTrackerLateAfterCommit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		committed string
		next      []string
		wantOK    []bool
	}{
		{"exact repeat", "hello world.", []string{"hello world"}, []bool{false}},
		{"repeat with punctuation", "hello world.", []string{"hello world."}, []bool{false}},
		{"prefix of the commit", "hello world.", []string{"hello", "hello wor"}, []bool{false, false}},
		{"new segment", "hello world.", []string{"next"}, []bool{true}},
		{"cjk commit", "你好世界。", []string{"你好", "再见"}, []bool{false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewPartialTracker(DefaultRewritePolicy())
			if edit, ok := tr.Plan("hello", now); ok {
				tr.Apply(edit.Insert)
			}
			tr.TakeInjected(tt.committed)

			for i, next := range tt.next {
				edit, ok := tr.Plan(next, now)
				if ok != tt.wantOK[i] {
					t.Fatalf("Plan(%q) ok = %v, want %v", next, ok, tt.wantOK[i])
				}
				if ok {
					tr.Apply(next)
					if edit.Backspaces != 0 {
						t.Errorf("Plan(%q) = %+v, want a pure insert", next, edit)
					}
				}
			}
		})
	}
}

func TestPartialTrackerRoute(t *testing.T) {
	tr := NewPartialTracker(DefaultRewritePolicy())

	if m := tr.Route(false); m != ModeClipboardOnly {
		t.Fatalf("Route(false) = %v", m)
	}
	if m := tr.Route(true); m != ModeClipboardOnly {
		t.Errorf("caret inside a clipboard segment switched mode to %v", m)
	}

	tr.TakeInjected("hello.")
	if m := tr.Route(true); m != ModeUndetermined {
		t.Errorf("Route(true) at a new segment = %v, want undetermined", m)
	}
	tr.Apply("next")
	tr.TakeInjected("next.")
	if m := tr.Route(true); m != ModeRealtimeCursor {
		t.Errorf("Route(true) kept mode %v, want realtime_cursor", m)
	}
	if m := tr.Route(false); m != ModeClipboardOnly {
		t.Errorf("Route(false) = %v", m)
	}
}

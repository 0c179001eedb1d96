package dictation

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		text string
		lang string
		want string
	}{
		{"collapse whitespace", "  hello \t\n  world  ", "eng", "hello world"},
		{"strip controls", "hel\x07lo\x00 world", "eng", "hello world"},
		{"nfc", "cafe\u0301", "eng", "caf\u00e9"},
		{"fold full-width for english", "ＡＢＣ １２３！", "eng", "ABC 123!"},
		{"keep full-width for chinese", "你好，世界！", "zho", "你好，世界！"},
		{"auto latin folds", "ｈｉ there", "auto", "hi there"},
		{"auto cjk keeps punctuation", "你好，世界", "auto", "你好，世界"},
		{"empty", " \x07 ", "eng", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.text, tt.lang); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.text, tt.lang, got, tt.want)
			}
		})
	}
}

func TestAppendTerminalPunctuation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello world."},
		{"hello world.", "hello world."},
		{"really?", "really?"},
		{"你好", "你好，"},
		{"你好。", "你好。"},
		{`he said "stop."`, `he said "stop."`},
		{"(aside)", "(aside)."},
		{"  padded  ", "padded."},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := AppendTerminalPunctuation(tt.in); got != tt.want {
				t.Errorf("AppendTerminalPunctuation(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveCommittedPunctuationDelta(t *testing.T) {
	tests := []struct {
		name      string
		committed string
		injected  string
		want      string
	}{
		{"latin period", "hello world.", "hello world", "."},
		{"cjk comma", "你好，", "你好", "，"},
		{"new words are not retyped", "hello world again", "hello world", ""},
		{"punctuation with wrapper", `say "hi."`, `say "hi`, `."`},
		{"injected already punctuated", "hello world!", "hello world.", ""},
		{"revised words keep final mark", "Hello world.", "hello world", "."},
		{"identical", "done.", "done.", ""},
		{"nothing injected", "hello.", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveCommittedPunctuationDelta(tt.committed, tt.injected); got != tt.want {
				t.Errorf("ResolveCommittedPunctuationDelta(%q, %q) = %q, want %q",
					tt.committed, tt.injected, got, tt.want)
			}
		})
	}
}

func TestAppendPending(t *testing.T) {
	tests := []struct {
		name    string
		pending string
		segment string
		want    string
	}{
		{"first segment", "", "hello", "hello"},
		{"keeps trailing space", "foo", "bar ", "foo bar "},
		{"latin words", "hello world", "new chunk", "hello world new chunk"},
		{"cjk joins directly", "你好", "世界", "你好世界"},
		{"blank segment", "existing", "   ", "existing"},
		{"after ascii sentence", "Done.", "Next one.", "Done. Next one."},
		{"after full-width comma", "你好，", "world", "你好，world"},
		{"before punctuation", "hello", ", there", "hello, there"},
		{"pending ends in space", "foo ", "bar", "foo bar"},
		{"leading space trimmed", "foo", "  bar", "foo bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendPending(tt.pending, tt.segment); got != tt.want {
				t.Errorf("AppendPending(%q, %q) = %q, want %q", tt.pending, tt.segment, got, tt.want)
			}
		})
	}
}

func TestRuneHelpers(t *testing.T) {
	if n := commonPrefixRunes("modern test", "model test"); n != 4 {
		t.Errorf("commonPrefixRunes = %d, want 4", n)
	}
	if n := commonPrefixRunes("你好世界", "你好朋友"); n != 2 {
		t.Errorf("commonPrefixRunes(cjk) = %d, want 2", n)
	}
	if s := suffixFromRune("model test", 4); s != "l test" {
		t.Errorf("suffixFromRune = %q, want %q", s, "l test")
	}
	if s := suffixFromRune("你好朋友", 2); s != "朋友" {
		t.Errorf("suffixFromRune(cjk) = %q", s)
	}
	if s := suffixFromRune("abc", 5); s != "" {
		t.Errorf("suffixFromRune past end = %q", s)
	}
}

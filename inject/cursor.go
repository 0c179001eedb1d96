package inject

// TextCursorDetector reports whether the focused window shows a text caret.
type TextCursorDetector interface {
	IsTextCursorAvailable() bool
}

// assumedCursor answers with a fixed value on platforms without a caret query.
type assumedCursor bool

func (a assumedCursor) IsTextCursorAvailable() bool { return bool(a) }

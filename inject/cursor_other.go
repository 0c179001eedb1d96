//go:build !windows

package inject

// NewCursorDetector returns a detector that reports assume. There is no
// portable caret query outside Windows.
func NewCursorDetector(assume bool) TextCursorDetector {
	return assumedCursor(assume)
}

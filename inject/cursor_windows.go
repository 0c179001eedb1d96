//go:build windows

package inject

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const guiCaretBlinking = 0x00000001

type caretQuery struct{}

// NewCursorDetector queries the foreground thread's caret. assume is
// ignored on Windows.
func NewCursorDetector(assume bool) TextCursorDetector {
	return caretQuery{}
}

func (caretQuery) IsTextCursorAvailable() bool {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return false
	}
	tid, err := windows.GetWindowThreadProcessId(hwnd, nil)
	if err != nil || tid == 0 {
		return false
	}
	var info windows.GUIThreadInfo
	info.Size = uint32(unsafe.Sizeof(info))
	if err := windows.GetGUIThreadInfo(tid, &info); err != nil {
		return false
	}
	return info.CaretHandle != 0 || info.Flags&guiCaretBlinking != 0
}

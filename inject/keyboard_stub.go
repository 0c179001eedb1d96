//go:build !windows && !linux && !darwin

package inject

// NewKeyboard is unavailable on this platform.
func NewKeyboard() (Keyboard, error) {
	return nil, ErrUnsupported
}

// Package clipboard copies invite links and pastes file paths through the
// system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable is returned when no clipboard provider exists, e.g. on a
// headless Linux box without xclip, xsel or wl-copy.
var ErrUnavailable = errors.New("clipboard: no provider available")

// Available reports whether a clipboard provider was detected.
func Available() bool {
	return !clipboard.Unsupported
}

// WriteText copies text to the system clipboard.
func WriteText(text string) error {
	if !Available() {
		return ErrUnavailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: copy failed: %w", err)
	}
	return nil
}

// ReadText returns text from the system clipboard.
func ReadText() (string, error) {
	if !Available() {
		return "", ErrUnavailable
	}
	out, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard: paste failed: %w", err)
	}
	return out, nil
}

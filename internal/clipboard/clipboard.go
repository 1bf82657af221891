// Package clipboard writes text to the system clipboard.
package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// System copies text to the operating system clipboard.
type System struct{}

// Copy places text on the clipboard.
func (System) Copy(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard: no clipboard utility available on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: write failed: %w", err)
	}
	return nil
}

// Memory records copied text. Used by -print runs without a desktop session and by tests.
type Memory struct {
	Text string
}

// Copy stores text.
func (m *Memory) Copy(text string) error {
	m.Text = text
	return nil
}

// Available reports whether a system clipboard utility was found.
func Available() bool {
	return !clipboard.Unsupported
}

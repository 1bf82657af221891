// Package notify renders progress toasts and the final HUD message of a run
// on the terminal.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Terminal prints toasts and HUD messages to a writer, stderr by default.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	styles styles
}

// NewTerminal returns a notifier writing to out. A nil out selects stderr.
func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stderr
	}
	return &Terminal{out: out, styles: newStyles(lipgloss.NewRenderer(out))}
}

// Toast shows a transient progress message. message may be empty.
func (t *Terminal) Toast(title, message string) {
	line := t.styles.toastTitle.Render(title)
	if message != "" {
		line += " " + t.styles.toastMessage.Render(message)
	}
	t.write(line)
}

// HUD shows the final outcome of a run.
func (t *Terminal) HUD(message string) {
	t.write(t.styles.hud.Render(message))
}

// Error shows a fatal error as a HUD message.
func (t *Terminal) Error(message string) {
	t.write(t.styles.hudError.Render(message))
}

func (t *Terminal) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.out, s)
}

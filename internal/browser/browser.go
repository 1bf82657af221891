// Package browser opens URLs in the user's default web browser.
package browser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	pkgbrowser "github.com/pkg/browser"
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// linuxBrowsers lists the commands tried, in order, when both libraries fail on Linux.
var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// launchers are tried in order until one succeeds.
var launchers = []struct {
	name string
	run  func(string) error
}{
	{name: "open-golang", run: open.Run},
	{name: "pkg/browser", run: pkgbrowser.OpenURL},
	{name: "platform command", run: openURLPlatformSpecific},
}

func init() {
	// pkg/browser echoes the launched command's output; keep the terminal clean.
	pkgbrowser.Stdout = io.Discard
	pkgbrowser.Stderr = io.Discard
}

// OpenURL opens the specified URL in the default web browser.
// It tries open-golang first, then pkg/browser, then platform-specific commands.
func OpenURL(url string) error {
	var lastErr error
	for _, l := range launchers {
		if err := l.run(url); err != nil {
			log.Debugf("browser: %s failed: %v", l.name, err)
			lastErr = err
			continue
		}
		log.Debugf("browser: opened URL using %s", l.name)
		return nil
	}
	return fmt.Errorf("browser: failed to open URL: %w", lastErr)
}

func openURLPlatformSpecific(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux":
		for _, browser := range linuxBrowsers {
			if _, err := exec.LookPath(browser); err == nil {
				cmd = exec.Command(browser, url)
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no suitable browser found on Linux system")
		}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	log.Debugf("Running command: %s %v", cmd.Path, cmd.Args[1:])
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}

// Opener opens authorization URLs for the auth flow.
type Opener struct {
	// NoBrowser only prints the URL.
	NoBrowser bool
	// Out receives the printed URL. Defaults to os.Stdout.
	Out io.Writer
	// open replaces OpenURL in tests.
	open func(string) error
}

// NewOpener returns an Opener that launches the system browser unless noBrowser is set.
func NewOpener(noBrowser bool) *Opener {
	return &Opener{NoBrowser: noBrowser, Out: os.Stdout, open: OpenURL}
}

// Open shows the URL to the user and launches the browser. A browser failure
// is not fatal: the printed URL can still be opened by hand.
func (o *Opener) Open(url string) error {
	out := o.Out
	if out == nil {
		out = os.Stdout
	}
	if o.NoBrowser {
		_, err := fmt.Fprintf(out, "Open this URL in your browser to authorize:\n\n%s\n\n", url)
		return err
	}

	_, _ = fmt.Fprintf(out, "Opening browser for authorization...\n")
	openFn := o.open
	if openFn == nil {
		openFn = OpenURL
	}
	if err := openFn(url); err != nil {
		log.Warnf("Failed to open browser automatically: %v", err)
		_, err = fmt.Fprintf(out, "Please open this URL manually:\n\n%s\n\n", url)
		return err
	}
	return nil
}

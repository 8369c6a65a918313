package terminal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
)

// Style selects how a notification is rendered.
type Style int

const (
	StyleInfo Style = iota
	StyleError
)

// Term is the terminal surface the rest of the application talks to.
type Term struct {
	logger   *slog.Logger
	out      io.Writer
	launcher Launcher

	graphical bool
}

// Options tweaks terminal construction.
type Options struct {
	// ForceTerminalBrowser pretends no graphical display exists.
	ForceTerminalBrowser bool

	// Out receives notifications and loader output. Nil means os.Stdout.
	Out io.Writer

	// Launcher overrides the browser launcher, mainly for tests.
	Launcher Launcher
}

// New creates a Term, detecting whether a graphical browser is available.
func New(logger *slog.Logger, opts Options) *Term {
	if logger == nil {
		logger = slog.Default()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	graphical := displayAvailable() && !opts.ForceTerminalBrowser
	launcher := opts.Launcher
	if launcher == nil {
		if graphical {
			launcher = GraphicalLauncher{}
		} else {
			launcher = NewTerminalLauncher()
		}
	}

	return &Term{
		logger:    logger,
		out:       out,
		launcher:  launcher,
		graphical: graphical,
	}
}

// IsGraphical reports whether a graphical browser surface is available.
func (t *Term) IsGraphical() bool {
	return t.graphical
}

// OpenBrowser opens the URL with the active launcher. In graphical mode the
// call returns as soon as the browser is spawned; in terminal mode it blocks
// until the browser process exits.
func (t *Term) OpenBrowser(url string) error {
	return t.launcher.Open(url)
}

// ShowNotification prints a one-line message to the terminal.
func (t *Term) ShowNotification(message string, style Style) {
	switch style {
	case StyleError:
		fmt.Fprintf(t.out, "\x1b[31m%s\x1b[0m\n", message)
	default:
		fmt.Fprintln(t.out, message)
	}
}

// displayAvailable checks for a graphical display. macOS and Windows always
// have one; elsewhere X11 or Wayland must be present.
func displayAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

package terminal

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/pkg/browser"
)

// Launcher opens an authorization URL for the user.
type Launcher interface {
	// Open opens the URL. Graphical launchers return once the browser is
	// spawned; terminal launchers block until the browser process exits.
	Open(url string) error
}

// GraphicalLauncher spawns the system's default browser in the background.
type GraphicalLauncher struct{}

// Open implements Launcher.
func (GraphicalLauncher) Open(url string) error {
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// terminalBrowsers are tried in order when $BROWSER is unset.
var terminalBrowsers = []string{"elinks", "lynx", "w3m"}

// TerminalLauncher runs a text-mode browser in the foreground and waits for
// the user to quit it.
type TerminalLauncher struct {
	// Command is the browser executable. Empty means autodetect.
	Command string
}

// NewTerminalLauncher picks the browser from $BROWSER or the first text-mode
// browser found on PATH.
func NewTerminalLauncher() *TerminalLauncher {
	if cmd := os.Getenv("BROWSER"); cmd != "" {
		return &TerminalLauncher{Command: cmd}
	}
	for _, candidate := range terminalBrowsers {
		if _, err := exec.LookPath(candidate); err == nil {
			return &TerminalLauncher{Command: candidate}
		}
	}
	return &TerminalLauncher{}
}

// Open implements Launcher. The browser takes over the terminal until the
// user closes it.
func (l *TerminalLauncher) Open(url string) error {
	if l.Command == "" {
		return fmt.Errorf("no terminal browser found; install one of %v or set $BROWSER", terminalBrowsers)
	}

	cmd := exec.Command(l.Command, url)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("terminal browser %s failed: %w", l.Command, err)
	}
	return nil
}

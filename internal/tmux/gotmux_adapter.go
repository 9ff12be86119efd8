// Package tmux opens stream worktrees as windows in a shared tmux session.
package tmux

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/GianlucaP106/gotmux/gotmux"
)

// SessionName is the shared session all stream windows live in.
const SessionName = "sluice"

// GotmuxAdapter wraps gotmux for stream attach and window cleanup.
type GotmuxAdapter struct {
	tmux *gotmux.Tmux
}

// NewGotmuxAdapter creates a new gotmux adapter.
func NewGotmuxAdapter() (*GotmuxAdapter, error) {
	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to create tmux client: %w", err)
	}
	return &GotmuxAdapter{
		tmux: tmux,
	}, nil
}

// AttachResult reports what OpenStreamWindow set up.
type AttachResult struct {
	SessionName    string
	WindowName     string
	CreatedSession bool
	CreatedWindow  bool
	Instructions   string
}

// OpenStreamWindow ensures the shared session has a window for the stream,
// rooted in its worktree, and selects it. The caller decides whether to
// attach or switch-client based on InsideTmux.
func (g *GotmuxAdapter) OpenStreamWindow(streamID, worktreePath string) (*AttachResult, error) {
	result := &AttachResult{
		SessionName:  SessionName,
		WindowName:   streamID,
		Instructions: AttachInstructions(SessionName, streamID),
	}

	session, err := g.GetSession(SessionName)
	if err != nil {
		return nil, err
	}

	if session == nil {
		session, err = g.tmux.NewSession(&gotmux.SessionOptions{
			Name:           SessionName,
			StartDirectory: worktreePath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		result.CreatedSession = true

		// The fresh session comes with one window; claim it for the stream
		windows, err := session.ListWindows()
		if err != nil {
			return nil, fmt.Errorf("failed to list windows: %w", err)
		}
		if len(windows) == 0 {
			return nil, fmt.Errorf("no windows found in new session")
		}
		if err := windows[0].Rename(streamID); err != nil {
			return nil, fmt.Errorf("failed to rename window: %w", err)
		}
		result.CreatedWindow = true
		return result, nil
	}

	window, err := session.GetWindowByName(streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up window %s: %w", streamID, err)
	}
	if window == nil {
		if _, err := session.NewWindow(&gotmux.NewWindowOptions{
			WindowName:     streamID,
			StartDirectory: worktreePath,
			DoNotAttach:    true,
		}); err != nil {
			return nil, fmt.Errorf("failed to create window %s: %w", streamID, err)
		}
		result.CreatedWindow = true
	}

	// Bring the window to the front for whoever attaches next
	if err := exec.Command("tmux", "select-window", "-t", WindowTarget(SessionName, streamID)).Run(); err != nil {
		return nil, fmt.Errorf("failed to select window: %w", err)
	}
	return result, nil
}

// KillStreamWindow removes the stream's window if it exists. Missing
// session or window is not an error; retired streams usually have neither.
func (g *GotmuxAdapter) KillStreamWindow(streamID string) error {
	session, err := g.GetSession(SessionName)
	if err != nil || session == nil {
		return err
	}
	window, err := session.GetWindowByName(streamID)
	if err != nil || window == nil {
		return err
	}
	return exec.Command("tmux", "kill-window", "-t", WindowTarget(SessionName, streamID)).Run()
}

// SwitchClient moves the current tmux client to the stream's window.
// Only valid when running inside tmux.
func (g *GotmuxAdapter) SwitchClient(streamID string) error {
	cmd := exec.Command("tmux", "switch-client", "-t", WindowTarget(SessionName, streamID))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to switch client: %w", err)
	}
	return nil
}

// GetSession returns a gotmux Session by name, or nil if not found.
func (g *GotmuxAdapter) GetSession(name string) (*gotmux.Session, error) {
	sessions, err := g.tmux.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, s := range sessions {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, nil
}

// SessionExists checks if a tmux session exists
func (g *GotmuxAdapter) SessionExists(name string) bool {
	sessions, err := g.tmux.ListSessions()
	if err != nil {
		return false
	}
	for _, s := range sessions {
		if s.Name == name {
			return true
		}
	}
	return false
}

// InsideTmux reports whether the current process runs under a tmux client.
func InsideTmux() bool {
	return os.Getenv("TMUX") != ""
}

// WindowTarget formats a session:window target for raw tmux commands.
func WindowTarget(session, window string) string {
	return fmt.Sprintf("%s:%s", session, window)
}

// AttachInstructions returns user-friendly instructions for reaching a
// stream window from outside tmux.
func AttachInstructions(sessionName, windowName string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Attach to session: tmux attach -t %s\n", sessionName))
	b.WriteString(fmt.Sprintf("Stream window: %s\n", windowName))
	b.WriteString("\n")
	b.WriteString("TMux Commands:\n")
	b.WriteString("  List windows: Ctrl+b then w\n")
	b.WriteString("  Switch windows: Ctrl+b then window number\n")
	b.WriteString("  Detach session: Ctrl+b then d\n")

	return b.String()
}

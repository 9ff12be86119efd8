// Package agent identifies the process acting on shared stream state.
// Lock tokens and journal entries carry this identity so a holder can
// always be traced back to a process, a host, and an operator.
package agent

import (
	"fmt"
	"os"
)

// Identity represents the acting process
type Identity struct {
	// Actor is the human or agent name driving this process, from
	// SLUICE_AGENT or the login user.
	Actor    string
	PID      int
	Hostname string
}

// Current detects the identity of the running process. Hostname
// lookup failures degrade to "unknown" rather than failing.
func Current() Identity {
	actor := os.Getenv("SLUICE_AGENT")
	if actor == "" {
		actor = os.Getenv("USER")
	}
	if actor == "" {
		actor = "unknown"
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return Identity{
		Actor:    actor,
		PID:      os.Getpid(),
		Hostname: hostname,
	}
}

// String renders the identity for log lines and lock diagnostics.
func (i Identity) String() string {
	return fmt.Sprintf("%s (pid %d on %s)", i.Actor, i.PID, i.Hostname)
}

// Package validator runs configured validation commands against a
// prepared merge.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/example/sluice/internal/ports/secondary"
)

// maxOutputInFailure caps how much command output is carried into a
// failure line. Full output still goes to the debug log.
const maxOutputInFailure = 500

// ExecRunner implements secondary.ValidatorRunner by shelling out to
// each configured command.
type ExecRunner struct {
	commands []string
	log      *slog.Logger
}

// NewExecRunner creates a runner for the given commands. An empty
// command list always validates clean.
func NewExecRunner(commands []string, logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		commands: commands,
		log:      logger,
	}
}

// RunValidators executes every command in order inside worktreePath.
// All commands run even after a failure so the caller sees the full
// picture in one pass.
func (r *ExecRunner) RunValidators(ctx context.Context, worktreePath string) (*secondary.ValidationResult, error) {
	result := &secondary.ValidationResult{Passed: true}

	for _, command := range r.commands {
		if strings.TrimSpace(command) == "" {
			continue
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = worktreePath

		output, err := cmd.CombinedOutput()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("validation interrupted: %w", ctx.Err())
			}
			result.Passed = false
			result.Failures = append(result.Failures, failureLine(command, output))
			r.log.Debug("validator failed",
				"command", command,
				"error", err,
				"output", string(output))
			continue
		}

		r.log.Debug("validator passed", "command", command)
	}

	return result, nil
}

// failureLine condenses a failed command and its output into one line.
func failureLine(command string, output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return command
	}
	if len(text) > maxOutputInFailure {
		text = text[:maxOutputInFailure] + "..."
	}
	return fmt.Sprintf("%s: %s", command, text)
}

// Ensure ExecRunner implements the interface
var _ secondary.ValidatorRunner = (*ExecRunner)(nil)

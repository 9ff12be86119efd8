package secondary

import "context"

// ValidatorRunner defines the interface for running configured
// validation commands against a prepared merge before it is pushed.
type ValidatorRunner interface {
	// RunValidators executes every configured command in the given
	// worktree. Command failures are reported in the result; only
	// infrastructure problems surface as errors.
	RunValidators(ctx context.Context, worktreePath string) (*ValidationResult, error)
}

// ValidationResult reports how a validation run ended.
type ValidationResult struct {
	Passed bool

	// Failures holds one line per failed command.
	Failures []string
}

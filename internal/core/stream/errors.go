package stream

import (
	"fmt"
	"strings"
)

// ProtocolViolationError reports that the merge protocol was invoked
// against repository state it refuses to touch, such as a dirty main
// working copy or a non-fast-forwardable branch. It carries the
// concrete steps the caller must take before retrying.
type ProtocolViolationError struct {
	Reason      string
	Remediation []string
}

func (e *ProtocolViolationError) Error() string {
	if len(e.Remediation) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s; remediation: %s", e.Reason, strings.Join(e.Remediation, "; "))
}

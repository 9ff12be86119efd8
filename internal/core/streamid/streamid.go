// Package streamid implements stream identifier allocation rules: epoch
// numbering, slug generation, and sub-stream suffixes. Pure functions
// only; persistence of counters lives in the registry.
package streamid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MaxMainStreamsPerEpoch bounds the two-digit counter space.
	MaxMainStreamsPerEpoch = 100

	// MaxSubStreams bounds the a-z suffix space per parent.
	MaxSubStreams = 26

	// MaxSlugLength caps generated slugs.
	MaxSlugLength = 50
)

// CapacityError reports an exhausted identifier space. It is fatal:
// the caller must take one of the listed remediations, allocation
// cannot proceed.
type CapacityError struct {
	Scope        string
	Limit        int
	Remediations []string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exhausted: %s (limit %d); remediation: %s",
		e.Scope, e.Limit, strings.Join(e.Remediations, "; "))
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a stream title into an id-safe slug: lowercase,
// runs of non-alphanumerics collapsed to single hyphens, trimmed, and
// capped at MaxSlugLength.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
		slug = strings.TrimRight(slug, "-")
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug
}

// FormatNumber renders the numeric portion of a main stream id:
// epoch digits followed by a zero-padded two-digit counter.
func FormatNumber(epoch string, counter int) string {
	return fmt.Sprintf("%s%02d", epoch, counter)
}

// Parts is a decomposed stream id.
type Parts struct {
	Epoch   string
	Counter int
	Suffix  string // single letter a-z, empty for main streams
	Slug    string
}

// Number reassembles the numeric prefix including any suffix letter.
func (p *Parts) Number() string {
	return FormatNumber(p.Epoch, p.Counter) + p.Suffix
}

// IsMain reports whether the id names a main stream rather than a
// sub-stream.
func (p *Parts) IsMain() bool {
	return p.Suffix == ""
}

// Parse decomposes a stream id of the form {epoch}{NN}[a-z]-{slug}.
// Legacy ids from pre-epoch registries do not parse and are rejected.
func Parse(id string) (*Parts, error) {
	number, slug, ok := strings.Cut(id, "-")
	if !ok || slug == "" {
		return nil, fmt.Errorf("invalid stream id %q: missing slug", id)
	}

	suffix := ""
	if len(number) > 0 {
		last := number[len(number)-1]
		if last >= 'a' && last <= 'z' {
			suffix = string(last)
			number = number[:len(number)-1]
		}
	}

	// At least one epoch digit plus the two counter digits.
	if len(number) < 3 {
		return nil, fmt.Errorf("invalid stream id %q: number %q too short", id, number)
	}
	epoch, counterStr := number[:len(number)-2], number[len(number)-2:]
	for _, r := range epoch {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("invalid stream id %q: epoch %q is not numeric", id, epoch)
		}
	}
	counter, err := strconv.Atoi(counterStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stream id %q: counter %q is not numeric", id, counterStr)
	}

	return &Parts{Epoch: epoch, Counter: counter, Suffix: suffix, Slug: slug}, nil
}

// MainRemediations are the ways out of an exhausted epoch counter.
var MainRemediations = []string{
	"allocate as a sub-stream of an existing stream",
	"bump the project major version to open a new epoch",
	"archive completed streams and compact the registry",
}

// NextCounter validates that an epoch has counter space left and
// returns the counter to use. The caller persists the increment.
func NextCounter(epoch string, next int) (int, error) {
	if next >= MaxMainStreamsPerEpoch {
		return 0, &CapacityError{
			Scope:        fmt.Sprintf("main streams in epoch %s", epoch),
			Limit:        MaxMainStreamsPerEpoch,
			Remediations: MainRemediations,
		}
	}
	return next, nil
}

// NextSuffix returns the smallest letter a-z not present in used.
// Letters already granted stay burned even if their streams are gone,
// so an id is never minted twice.
func NextSuffix(parentID string, used []string) (string, error) {
	taken := make(map[string]bool, len(used))
	for _, u := range used {
		taken[u] = true
	}
	for c := byte('a'); c <= 'z'; c++ {
		if s := string(c); !taken[s] {
			return s, nil
		}
	}
	return "", &CapacityError{
		Scope:        fmt.Sprintf("sub-streams of %s", parentID),
		Limit:        MaxSubStreams,
		Remediations: []string{"allocate a new main stream instead"},
	}
}

// BranchName derives the git branch a stream works on.
func BranchName(id string) string {
	return "stream/" + id
}

// WorktreeDirName derives the directory name for a stream's worktree
// under the configured worktree base.
func WorktreeDirName(id string) string {
	return id
}

// Package review runs the merge-request review pipeline: resolve the diff,
// ask a review backend for feedback, post it as a comment and optionally
// start a pipeline. Events reach the Orchestrator through a Queue so that
// webhook handlers never wait on any of it.
package review

import (
	"fmt"
	"strings"
)

// Event is one merge request to review.
type Event struct {
	ProjectID    string
	MRIID        int64
	SourceBranch string
	TargetBranch string

	// Diff is the change text carried by the webhook, possibly empty.
	Diff string
}

// Valid reports whether the event identifies a merge request.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.ProjectID) != "" && e.MRIID > 0
}

func (e Event) String() string {
	return fmt.Sprintf("%s!%d", e.ProjectID, e.MRIID)
}

const promptTemplate = "You are a helpful code reviewer. Analyze this code diff and give constructive feedback:\n\n"

// BuildPrompt wraps diff in the review instruction.
func BuildPrompt(diff string) string {
	return promptTemplate + diff
}

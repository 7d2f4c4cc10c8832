package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SourceHost is the part of the source-control host API the review pipeline
// uses. Implementations make exactly one HTTP call per operation and never
// retry; transport and status outcomes are surfaced to the caller.
type SourceHost interface {
	Info() ProviderInfo

	// FetchMRDiff returns the per-file changes of a merge request. A
	// non-success status yields an empty payload and a nil error.
	FetchMRDiff(ctx context.Context, projectID string, mrIID int64) (DiffPayload, error)

	// PostMRNote posts body as a merge request comment and returns the
	// host's status code. Only transport and configuration problems are
	// returned as errors.
	PostMRNote(ctx context.Context, projectID string, mrIID int64, body string) (int, error)

	// TriggerPipeline starts a CI pipeline on ref. Same contract as
	// PostMRNote.
	TriggerPipeline(ctx context.Context, projectID string, ref string) (int, error)

	Validate() error
}

// ProviderInfo describes a VCS provider.
type ProviderInfo struct {
	Name    string
	BaseURL string
}

// FileDiff represents a single file's diff in a merge request.
type FileDiff struct {
	OldPath     string
	NewPath     string
	Diff        string
	NewFile     bool
	RenamedFile bool
	DeletedFile bool
}

// DiffPayload is the ordered list of file changes of a merge request, in
// the order the host returned them.
type DiffPayload struct {
	Files []FileDiff

	// Status is the HTTP status of the fetch, 0 when no call was made.
	Status int
}

// Text joins every file diff body with newlines.
func (d DiffPayload) Text() string {
	parts := make([]string, 0, len(d.Files))
	for _, f := range d.Files {
		parts = append(parts, f.Diff)
	}
	return strings.Join(parts, "\n")
}

// MRNote represents one top-level MR note/comment.
type MRNote struct {
	ID     int64
	Author string
	Body   string
}

// ErrNotConfigured is matched by every ConfigError.
var ErrNotConfigured = errors.New("vcs: source host not configured")

// ConfigError reports a missing setting. It means the service cannot work
// in its current environment and is never worth retrying.
type ConfigError struct {
	Host    string
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s is not set", e.Host, e.Setting)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrNotConfigured
}

// IsSuccess reports whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

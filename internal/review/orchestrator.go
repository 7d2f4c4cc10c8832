package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/anushkapunekar/agentops/internal/diffparse"
	"github.com/anushkapunekar/agentops/internal/provider"
	"github.com/anushkapunekar/agentops/internal/vcs"
)

// DefaultMinDiffLength is the shortest webhook diff used without fetching
// the merge request changes from the host.
const DefaultMinDiffLength = 50

// Host is the part of vcs.SourceHost the orchestrator needs.
type Host interface {
	FetchMRDiff(ctx context.Context, projectID string, mrIID int64) (vcs.DiffPayload, error)
	PostMRNote(ctx context.Context, projectID string, mrIID int64, body string) (int, error)
	TriggerPipeline(ctx context.Context, projectID string, ref string) (int, error)
}

// Reviewer turns a prompt into review text. *provider.Adapter implements it.
type Reviewer interface {
	Review(ctx context.Context, prompt string) provider.Result
}

// Recorder stores finished runs. A nil Recorder disables history.
type Recorder interface {
	Record(ctx context.Context, out Outcome) error
}

// Outcome describes what happened to one event. A nil status means the
// step was not attempted or did not get a response.
type Outcome struct {
	Event       Event
	DiffFetched bool
	DiffLength  int
	Review      provider.Result

	// Changes summarizes the host's changes when the diff was fetched.
	Changes *diffparse.Summary

	// Abandoned holds the configuration error that ended the run early.
	Abandoned error

	CommentStatus  *int
	CommentErr     error
	PipelineRef    string
	PipelineStatus *int
	PipelineErr    error

	StartedAt time.Time
	Duration  time.Duration
}

// CommentPosted reports whether the host accepted the comment.
func (o Outcome) CommentPosted() bool {
	return o.CommentStatus != nil && vcs.IsSuccess(*o.CommentStatus)
}

// PipelineTriggered reports whether the host accepted the pipeline.
func (o Outcome) PipelineTriggered() bool {
	return o.PipelineStatus != nil && vcs.IsSuccess(*o.PipelineStatus)
}

// Options tunes an Orchestrator. Zero values pick the defaults.
type Options struct {
	MinDiffLength   int
	DefaultBranch   string
	PipelineEnabled bool
	Recorder        Recorder
	Logger          *slog.Logger
}

// Orchestrator runs the review steps for one event at a time. It is safe
// for concurrent use.
type Orchestrator struct {
	host          Host
	reviewer      Reviewer
	recorder      Recorder
	logger        *slog.Logger
	minDiffLength int
	defaultBranch string
	pipeline      bool
	now           func() time.Time
}

// NewOrchestrator wires the host and the reviewer together.
func NewOrchestrator(host Host, reviewer Reviewer, opts Options) *Orchestrator {
	o := &Orchestrator{
		host:          host,
		reviewer:      reviewer,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		minDiffLength: opts.MinDiffLength,
		defaultBranch: opts.DefaultBranch,
		pipeline:      opts.PipelineEnabled,
		now:           time.Now,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.minDiffLength <= 0 {
		o.minDiffLength = DefaultMinDiffLength
	}
	if o.defaultBranch == "" {
		o.defaultBranch = "main"
	}
	return o
}

// hostValidator is implemented by hosts that can report missing settings
// before any call is made.
type hostValidator interface {
	Validate() error
}

// Process runs every step for ev. Failures are logged and reported in the
// Outcome, never returned, and a panic in any step ends the run quietly.
// A host configuration error abandons the run: no further host call is
// made and the reviewer is not invoked after it.
func (o *Orchestrator) Process(ctx context.Context, ev Event) (out Outcome) {
	log := o.logger.With("project_id", ev.ProjectID, "mr_iid", ev.MRIID)
	out = Outcome{Event: ev, StartedAt: o.now()}

	defer func() {
		if r := recover(); r != nil {
			log.Error("review run panicked", "panic", r, "stack", string(debug.Stack()))
		}
		out.Duration = o.now().Sub(out.StartedAt)
		o.record(ctx, log, out)
	}()

	log.Info("review started", "diff_length", len(ev.Diff))

	if v, ok := o.host.(hostValidator); ok {
		if err := v.Validate(); err != nil {
			o.abandon(log, &out, err)
			return out
		}
	}

	diff, changes, err := o.resolveDiff(ctx, ev)
	if err != nil {
		o.abandon(log, &out, err)
		return out
	}
	out.DiffFetched = changes != nil
	out.DiffLength = len(diff)
	out.Changes = changes

	out.Review = o.Invoke(ctx, diff)
	o.Deliver(ctx, ev, out.Review.Text, &out)
	if out.Abandoned != nil {
		return out
	}

	log.Info("review finished",
		"backend", out.Review.Backend,
		"review_failed", out.Review.Failed(),
		"comment_posted", out.CommentPosted(),
		"pipeline_triggered", out.PipelineTriggered(),
	)
	return out
}

// ResolveDiff returns the diff to review and whether it came from the host.
// A webhook diff shorter than the minimum length is replaced by the host's
// merge request changes when that fetch yields any text; a failed fetch
// keeps the webhook diff.
// A host configuration error is returned as is.
func (o *Orchestrator) ResolveDiff(ctx context.Context, ev Event) (string, bool, error) {
	diff, changes, err := o.resolveDiff(ctx, ev)
	return diff, changes != nil, err
}

func (o *Orchestrator) resolveDiff(ctx context.Context, ev Event) (string, *diffparse.Summary, error) {
	if len(ev.Diff) >= o.minDiffLength {
		return ev.Diff, nil, nil
	}

	log := o.logger.With("project_id", ev.ProjectID, "mr_iid", ev.MRIID)
	payload, err := o.host.FetchMRDiff(ctx, ev.ProjectID, ev.MRIID)
	if errors.Is(err, vcs.ErrNotConfigured) {
		return "", nil, err
	}
	if err != nil {
		log.Warn("diff fetch failed, using webhook diff", "error", err)
		return ev.Diff, nil, nil
	}
	if !vcs.IsSuccess(payload.Status) {
		log.Warn("diff fetch returned non-success status", "status", payload.Status)
	}

	text := payload.Text()
	if text == "" {
		return ev.Diff, nil, nil
	}
	changes := diffparse.Summarize(payload.Files)
	log.Info("diff fetched",
		"files", len(changes.Files),
		"additions", changes.Additions,
		"deletions", changes.Deletions,
		"length", len(text),
	)
	return text, &changes, nil
}

// Invoke asks the reviewer about diff.
func (o *Orchestrator) Invoke(ctx context.Context, diff string) provider.Result {
	return o.reviewer.Review(ctx, BuildPrompt(diff))
}

// Deliver posts text as a merge request note when it is not blank, then
// triggers a pipeline when enabled. The two steps are independent, except
// that a host configuration error from the comment abandons the pipeline.
func (o *Orchestrator) Deliver(ctx context.Context, ev Event, text string, out *Outcome) {
	log := o.logger.With("project_id", ev.ProjectID, "mr_iid", ev.MRIID)

	if strings.TrimSpace(text) == "" {
		log.Info("review is empty, comment skipped")
	} else {
		o.postComment(ctx, log, ev, text, out)
		if errors.Is(out.CommentErr, vcs.ErrNotConfigured) {
			o.abandon(log, out, out.CommentErr)
			return
		}
	}

	if !o.pipeline {
		return
	}
	ref := ev.TargetBranch
	if ref == "" {
		ref = o.defaultBranch
	}
	o.triggerPipeline(ctx, log, ev, ref, out)
}

func (o *Orchestrator) postComment(ctx context.Context, log *slog.Logger, ev Event, text string, out *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out.CommentErr = fmt.Errorf("review: comment delivery panicked: %v", r)
			log.Error("comment delivery panicked", "panic", r)
		}
	}()

	status, err := o.host.PostMRNote(ctx, ev.ProjectID, ev.MRIID, text)
	if err != nil {
		out.CommentErr = err
		if !errors.Is(err, vcs.ErrNotConfigured) {
			log.Error("failed to post review comment", "error", err)
		}
		return
	}
	out.CommentStatus = &status
	if !vcs.IsSuccess(status) {
		log.Warn("review comment rejected", "status", status)
	}
}

func (o *Orchestrator) triggerPipeline(ctx context.Context, log *slog.Logger, ev Event, ref string, out *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out.PipelineErr = fmt.Errorf("review: pipeline trigger panicked: %v", r)
			log.Error("pipeline trigger panicked", "panic", r)
		}
	}()

	out.PipelineRef = ref
	status, err := o.host.TriggerPipeline(ctx, ev.ProjectID, ref)
	if errors.Is(err, vcs.ErrNotConfigured) {
		out.PipelineErr = err
		o.abandon(log, out, err)
		return
	}
	if err != nil {
		out.PipelineErr = err
		log.Error("failed to trigger pipeline", "ref", ref, "error", err)
		return
	}
	out.PipelineStatus = &status
	if !vcs.IsSuccess(status) {
		log.Warn("pipeline trigger rejected", "ref", ref, "status", status)
	}
}

// abandon ends the run on a host configuration error. It is logged once.
func (o *Orchestrator) abandon(log *slog.Logger, out *Outcome, err error) {
	out.Abandoned = err
	log.Error("review abandoned, source host is not configured", "error", err)
}

func (o *Orchestrator) record(ctx context.Context, log *slog.Logger, out Outcome) {
	if o.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("recording review panicked", "panic", r)
		}
	}()
	if err := o.recorder.Record(context.WithoutCancel(ctx), out); err != nil {
		log.Warn("failed to record review", "error", err)
	}
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/anushkapunekar/agentops/internal/renders"
	"github.com/anushkapunekar/agentops/internal/review"
	"github.com/atotto/clipboard"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

func newReviewCmd() *cobra.Command {
	var (
		dryRun bool
		copyIt bool
		raw    bool
	)

	reviewCmd := &cobra.Command{
		Use:   "review <project> <mr-iid>",
		Short: "Review a merge request now, without waiting for a webhook.",
		Example: "agentops review 42 7\n" +
			"agentops review group%2Fproject 7 --dry-run --copy",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := parseReviewArgs(args)
			if err != nil {
				return err
			}

			conf, err := loadConfig(cmd.Flags(), nil)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), conf)

			p, err := newPipeline(conf, logger, !dryRun)
			if err != nil {
				return err
			}
			defer p.Close()

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
			s.Suffix = fmt.Sprintf(" reviewing %s...", ev)
			s.Start()
			out := runReview(cmd.Context(), p.orchestrator, ev, dryRun)
			s.Stop()

			if copyIt && out.Review.Text != "" {
				if err := clipboard.WriteAll(out.Review.Text); err != nil {
					logger.Warn("could not copy the review to the clipboard", "error", err)
				}
			}

			return printOutcome(cmd.OutOrStdout(), out, raw)
		},
	}

	reviewCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the review without commenting or triggering a pipeline")
	reviewCmd.Flags().BoolVarP(&copyIt, "copy", "c", false, "copy the review text to the clipboard")
	reviewCmd.Flags().BoolVar(&raw, "raw", false, "print only the review text")
	return reviewCmd
}

// parseReviewArgs reads "<project> <mr-iid>". The webhook diff is left
// empty so the changes are always fetched from the host. An already
// escaped project path is unescaped since the host client escapes it.
func parseReviewArgs(args []string) (review.Event, error) {
	iid, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || iid <= 0 {
		return review.Event{}, fmt.Errorf("invalid merge request iid %q", args[1])
	}
	project, err := url.PathUnescape(args[0])
	if err != nil {
		return review.Event{}, fmt.Errorf("invalid project %q: %w", args[0], err)
	}
	ev := review.Event{ProjectID: project, MRIID: iid}
	if !ev.Valid() {
		return review.Event{}, fmt.Errorf("invalid project %q", args[0])
	}
	return ev, nil
}

// runReview runs the orchestrator on ev. A dry run stops after the review
// step.
func runReview(ctx context.Context, orch *review.Orchestrator, ev review.Event, dryRun bool) review.Outcome {
	if !dryRun {
		return orch.Process(ctx, ev)
	}
	diff, fetched, err := orch.ResolveDiff(ctx, ev)
	if err != nil {
		return review.Outcome{Event: ev, Abandoned: err}
	}
	return review.Outcome{
		Event:       ev,
		DiffFetched: fetched,
		DiffLength:  len(diff),
		Review:      orch.Invoke(ctx, diff),
	}
}

func printOutcome(w io.Writer, out review.Outcome, raw bool) error {
	if raw {
		_, err := fmt.Fprintln(w, out.Review.Text)
		return err
	}
	return renders.Write(w, review.FormatOutcome(out))
}

func init() {
	rootCmd.AddCommand(newReviewCmd())
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anushkapunekar/agentops/internal/provider"
	"github.com/anushkapunekar/agentops/internal/vcs"
	"github.com/spf13/cobra"
)

// noteLister is implemented by hosts that can list merge request notes.
type noteLister interface {
	ListMRNotes(ctx context.Context, projectID string, mrIID int64) ([]vcs.MRNote, error)
}

func newNotesCmd() *cobra.Command {
	var failedOnly bool

	notesCmd := &cobra.Command{
		Use:     "notes <project> <mr-iid>",
		Short:   "List the comments of a merge request.",
		Example: "agentops notes 42 7 --failed",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := parseReviewArgs(args)
			if err != nil {
				return err
			}
			conf, err := loadConfig(cmd.Flags(), nil)
			if err != nil {
				return err
			}

			host, err := vcs.Get(hostName, conf)
			if err != nil {
				return err
			}
			lister, ok := host.(noteLister)
			if !ok {
				return fmt.Errorf("%s cannot list merge request notes", hostName)
			}

			notes, err := lister.ListMRNotes(cmd.Context(), ev.ProjectID, ev.MRIID)
			if err != nil {
				return err
			}
			return printNotes(cmd.OutOrStdout(), notes, failedOnly)
		},
	}

	notesCmd.Flags().BoolVar(&failedOnly, "failed", false, "only show notes left by failed reviews")
	return notesCmd
}

func printNotes(w io.Writer, notes []vcs.MRNote, failedOnly bool) error {
	shown := 0
	for _, n := range notes {
		failed := provider.IsFailureText(n.Body)
		if failedOnly && !failed {
			continue
		}
		marker := ""
		if failed {
			marker = " [review failed]"
		}
		if _, err := fmt.Fprintf(w, "#%d @%s%s\n%s\n\n", n.ID, n.Author, marker, strings.TrimSpace(n.Body)); err != nil {
			return err
		}
		shown++
	}
	if shown == 0 {
		_, err := fmt.Fprintln(w, "No notes.")
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newNotesCmd())
}

package review

import (
	"fmt"
	"strings"
)

// FormatOutcome renders an Outcome as CLI-friendly markdown.
func FormatOutcome(out Outcome) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Review: %s\n\n", out.Event))

	if out.Abandoned != nil {
		sb.WriteString(fmt.Sprintf("**Abandoned:** %s\n", out.Abandoned))
		return sb.String()
	}

	source := "webhook"
	if out.DiffFetched {
		source = "host"
	}
	sb.WriteString(fmt.Sprintf("**Backend:** %s  \n", backendLabel(out)))
	sb.WriteString(fmt.Sprintf("**Diff:** %d bytes from %s  \n", out.DiffLength, source))
	if out.Changes != nil {
		sb.WriteString(fmt.Sprintf("**Changes:** %s\n", out.Changes))
	}
	sb.WriteString("\n")

	sb.WriteString("## Feedback\n\n")
	if strings.TrimSpace(out.Review.Text) == "" {
		sb.WriteString("_The backend returned an empty review._")
	} else {
		sb.WriteString(strings.TrimSpace(out.Review.Text))
	}
	sb.WriteString("\n\n")

	sb.WriteString("## Delivery\n\n")
	sb.WriteString(fmt.Sprintf("- Comment: %s\n", stepStatus(out.CommentStatus, out.CommentErr)))
	if out.PipelineRef != "" {
		sb.WriteString(fmt.Sprintf("- Pipeline (%s): %s\n", out.PipelineRef, stepStatus(out.PipelineStatus, out.PipelineErr)))
	} else {
		sb.WriteString("- Pipeline: skipped\n")
	}

	return sb.String()
}

func backendLabel(out Outcome) string {
	if out.Review.Backend == "" {
		return "none"
	}
	if out.Review.Failed() {
		return string(out.Review.Backend) + " (failed)"
	}
	return string(out.Review.Backend)
}

func stepStatus(status *int, err error) string {
	switch {
	case err != nil:
		return "failed: " + err.Error()
	case status == nil:
		return "skipped"
	default:
		return fmt.Sprintf("HTTP %d", *status)
	}
}

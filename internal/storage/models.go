package storage

import "time"

// ReviewRecord is one stored orchestrator run.
type ReviewRecord struct {
	ReviewID       string    `json:"review_id"`
	ProjectID      string    `json:"project_id"`
	MRIID          int64     `json:"mr_iid"`
	SourceBranch   string    `json:"source_branch"`
	TargetBranch   string    `json:"target_branch"`
	Backend        string    `json:"backend"`
	ReviewFailed   bool      `json:"review_failed"`
	DiffFetched    bool      `json:"diff_fetched"`
	DiffLength     int       `json:"diff_length"`
	Comment        string    `json:"comment"`
	CommentStatus  *int      `json:"comment_status"`
	CommentError   string    `json:"comment_error,omitempty"`
	PipelineRef    string    `json:"pipeline_ref,omitempty"`
	PipelineStatus *int      `json:"pipeline_status"`
	PipelineError  string    `json:"pipeline_error,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

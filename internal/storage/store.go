// Package storage keeps a history of review runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anushkapunekar/agentops/internal/review"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const (
	timeFormat = time.RFC3339Nano

	DefaultListLimit = 20
	MaxListLimit     = 200
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Workers record concurrently; a single connection serializes writes.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores out. It satisfies review.Recorder.
func (s *Store) Record(ctx context.Context, out review.Outcome) error {
	createdAt := out.StartedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO reviews (
			review_id, project_id, mr_iid, source_branch, target_branch,
			backend, review_failed, diff_fetched, diff_length, comment,
			comment_status, comment_error, pipeline_ref, pipeline_status,
			pipeline_error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(),
		out.Event.ProjectID,
		out.Event.MRIID,
		out.Event.SourceBranch,
		out.Event.TargetBranch,
		string(out.Review.Backend),
		boolInt(out.Review.Failed()),
		boolInt(out.DiffFetched),
		out.DiffLength,
		out.Review.Text,
		nullInt(out.CommentStatus),
		errText(out.CommentErr),
		out.PipelineRef,
		nullInt(out.PipelineStatus),
		errText(out.PipelineErr),
		out.Duration.Milliseconds(),
		createdAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("storage: record review %s: %w", out.Event, err)
	}
	return nil
}

// ListReviews returns up to limit records, newest first. A limit outside
// 1..MaxListLimit is clamped.
func (s *Store) ListReviews(ctx context.Context, limit int) ([]ReviewRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
			review_id, project_id, mr_iid, source_branch, target_branch,
			backend, review_failed, diff_fetched, diff_length, comment,
			comment_status, comment_error, pipeline_ref, pipeline_status,
			pipeline_error, duration_ms, created_at
		FROM reviews ORDER BY review_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list reviews: %w", err)
	}
	defer rows.Close()

	records := []ReviewRecord{}
	for rows.Next() {
		var (
			rec            ReviewRecord
			failed, fetchd int
			commentStatus  sql.NullInt64
			pipelineStatus sql.NullInt64
			createdAt      string
		)
		if err := rows.Scan(
			&rec.ReviewID, &rec.ProjectID, &rec.MRIID, &rec.SourceBranch, &rec.TargetBranch,
			&rec.Backend, &failed, &fetchd, &rec.DiffLength, &rec.Comment,
			&commentStatus, &rec.CommentError, &rec.PipelineRef, &pipelineStatus,
			&rec.PipelineError, &rec.DurationMS, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan review: %w", err)
		}
		rec.ReviewFailed = failed != 0
		rec.DiffFetched = fetchd != 0
		rec.CommentStatus = intPtr(commentStatus)
		rec.PipelineStatus = intPtr(pipelineStatus)
		rec.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

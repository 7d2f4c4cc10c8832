package storage

import "database/sql"

func runMigrations(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reviews (
			review_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			mr_iid INTEGER NOT NULL,
			source_branch TEXT NOT NULL,
			target_branch TEXT NOT NULL,
			backend TEXT NOT NULL,
			review_failed INTEGER NOT NULL,
			diff_fetched INTEGER NOT NULL,
			diff_length INTEGER NOT NULL,
			comment TEXT NOT NULL,
			comment_status INTEGER,
			comment_error TEXT NOT NULL,
			pipeline_ref TEXT NOT NULL,
			pipeline_status INTEGER,
			pipeline_error TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_project_mr ON reviews(project_id, mr_iid);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

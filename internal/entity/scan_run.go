package entity

import "time"

// ScanRun mirrors the `scan_runs` PostgreSQL table schema.
type ScanRun struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	PageURL    string    `json:"page_url"`
	Strategy   string    `json:"strategy"`
	Candidates int       `json:"candidates"`
	Accepted   int       `json:"accepted"`
	MinSize    int       `json:"min_size"`
	MaxSize    int       `json:"max_size"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

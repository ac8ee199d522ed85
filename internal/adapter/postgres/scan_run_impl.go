package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
)

const scanRunsSchema = `
	CREATE TABLE IF NOT EXISTS scan_runs (
		id          BIGSERIAL PRIMARY KEY,
		session_id  TEXT        NOT NULL,
		page_url    TEXT        NOT NULL,
		strategy    TEXT        NOT NULL,
		candidates  INTEGER     NOT NULL,
		accepted    INTEGER     NOT NULL,
		min_size    INTEGER     NOT NULL,
		max_size    INTEGER     NOT NULL,
		duration_ms BIGINT      NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS scan_runs_page_url_started_at_idx
		ON scan_runs (page_url, started_at DESC);
`

// ScanRunRepoImpl provides a concrete implementation for the ScanRunRepository interface using PostgreSQL.
type ScanRunRepoImpl struct {
	db *pgxpool.Pool
}

// NewScanRunRepo creates a new instance of ScanRunRepoImpl.
func NewScanRunRepo(db *pgxpool.Pool) *ScanRunRepoImpl {
	return &ScanRunRepoImpl{db: db}
}

var _ repository.ScanRunRepository = (*ScanRunRepoImpl)(nil)

// EnsureSchema creates the scan_runs table when it does not exist yet.
func (r *ScanRunRepoImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, scanRunsSchema)
	return err
}

// Save inserts a run and stores the generated id on it.
func (r *ScanRunRepoImpl) Save(ctx context.Context, run *entity.ScanRun) error {
	query := `
		INSERT INTO scan_runs (session_id, page_url, strategy, candidates, accepted, min_size, max_size, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id;
	`
	return r.db.QueryRow(ctx, query,
		run.SessionID,
		run.PageURL,
		run.Strategy,
		run.Candidates,
		run.Accepted,
		run.MinSize,
		run.MaxSize,
		run.DurationMS,
		run.StartedAt,
	).Scan(&run.ID)
}

// FindByPageURL retrieves the latest runs for a page, newest first.
func (r *ScanRunRepoImpl) FindByPageURL(ctx context.Context, pageURL string, limit int) ([]*entity.ScanRun, error) {
	query := `
		SELECT id, session_id, page_url, strategy, candidates, accepted, min_size, max_size, duration_ms, started_at
		FROM scan_runs
		WHERE page_url = $1
		ORDER BY started_at DESC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, pageURL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*entity.ScanRun{}
	for rows.Next() {
		var run entity.ScanRun
		if err := rows.Scan(
			&run.ID,
			&run.SessionID,
			&run.PageURL,
			&run.Strategy,
			&run.Candidates,
			&run.Accepted,
			&run.MinSize,
			&run.MaxSize,
			&run.DurationMS,
			&run.StartedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

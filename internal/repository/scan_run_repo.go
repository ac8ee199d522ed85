package repository

import (
	"context"

	"github.com/user/gallery-service/internal/entity"
)

// ScanRunRepository defines the interface for storing and retrieving discovery run history.
type ScanRunRepository interface {
	// Save stores a completed run and fills in its ID.
	Save(ctx context.Context, run *entity.ScanRun) error
	// FindByPageURL retrieves the latest runs for a page, newest first.
	FindByPageURL(ctx context.Context, pageURL string, limit int) ([]*entity.ScanRun, error)
}

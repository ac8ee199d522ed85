package repository

import (
	"context"
	"io"

	"github.com/user/gallery-service/internal/entity"
)

// ImageArchiver packages images for download.
type ImageArchiver interface {
	// WriteArchive fetches every item and streams an archive to w. It returns
	// how many images made it into the archive; a single failed fetch is
	// skipped, not fatal.
	WriteArchive(ctx context.Context, w io.Writer, items []entity.ImageItem) (int, error)
}

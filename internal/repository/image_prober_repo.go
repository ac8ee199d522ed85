package repository

import (
	"context"
	"errors"

	"github.com/user/gallery-service/internal/entity"
)

// ErrNotImage is returned when a resource loads but cannot be decoded as an image.
var ErrNotImage = errors.New("resource is not a decodable image")

// ImageProber measures an image without rendering it anywhere.
type ImageProber interface {
	// Probe loads the image at url far enough to read its natural dimensions.
	Probe(ctx context.Context, url string) (entity.Dimensions, error)
}

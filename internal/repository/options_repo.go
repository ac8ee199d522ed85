package repository

import (
	"context"

	"github.com/user/gallery-service/internal/entity"
)

// OptionsRepository defines the interface for persisted user preferences.
type OptionsRepository interface {
	// Get returns the options saved for profile, or entity.DefaultOptions
	// when nothing has been saved yet.
	Get(ctx context.Context, profile string) (entity.Options, error)
	// Save stores the options for profile, replacing previous values.
	Save(ctx context.Context, profile string, opts entity.Options) error
}

package probe

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/gallery-service/internal/entity"
)

// Collector validates a batch of candidates concurrently and keeps whatever
// succeeds.
type Collector struct {
	validator      *Validator
	maxConcurrency int
}

// NewCollector returns a collector. maxConcurrency <= 0 launches every
// validation at once.
func NewCollector(v *Validator, maxConcurrency int) *Collector {
	return &Collector{validator: v, maxConcurrency: maxConcurrency}
}

// CollectPartial validates every candidate, each under its own
// perItemTimeout, and returns the accepted images in candidate order.
// Failed and timed out candidates are dropped; nothing is retried.
func (c *Collector) CollectPartial(ctx context.Context, candidates []string, window entity.SizeWindow, perItemTimeout time.Duration) []entity.ImageItem {
	// Indexed by candidate position so completion order never leaks into the output.
	results := make([]*entity.ImageItem, len(candidates))

	var g errgroup.Group
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}
	for i, candidate := range candidates {
		g.Go(func() error {
			results[i] = c.validator.Validate(ctx, candidate, window, perItemTimeout)
			return nil
		})
	}
	_ = g.Wait() // validations never return errors

	items := make([]entity.ImageItem, 0, len(candidates))
	for _, item := range results {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items
}

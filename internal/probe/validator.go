// Package probe measures candidate images and filters them by size.
package probe

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/pkg/metrics"
	"github.com/user/gallery-service/pkg/timebox"
	"github.com/user/gallery-service/pkg/utils"
)

// DefaultTimeout bounds a single image probe.
const DefaultTimeout = 2000 * time.Millisecond

// animatedExts are exempt from the size window.
var animatedExts = map[string]bool{
	".gif": true,
}

// Validator decides whether one candidate URL becomes a gallery image.
type Validator struct {
	prober  repository.ImageProber
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewValidator(prober repository.ImageProber, m *metrics.Metrics, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{prober: prober, metrics: m, logger: logger}
}

// Validate probes rawURL within timeout and returns the image when it
// decodes and fits window. Animated formats skip the window check. Every
// failure, including a timeout, yields nil.
func (v *Validator) Validate(ctx context.Context, rawURL string, window entity.SizeWindow, timeout time.Duration) *entity.ImageItem {
	dims, err := timebox.Do(ctx, timeout, func(ctx context.Context) (entity.Dimensions, error) {
		return v.prober.Probe(ctx, rawURL)
	})
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, timebox.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		v.metrics.ObserveProbe(outcome)
		v.logger.Debug("image probe failed", zap.String("url", rawURL), zap.String("outcome", outcome), zap.Error(err))
		return nil
	}

	if !IsAnimated(rawURL) && !window.Contains(dims.Width, dims.Height) {
		v.metrics.ObserveProbe(metrics.OutcomeRejectedSize)
		v.logger.Debug("image outside size window",
			zap.String("url", rawURL),
			zap.Int("width", dims.Width),
			zap.Int("height", dims.Height),
		)
		return nil
	}

	v.metrics.ObserveProbe(metrics.OutcomeAccepted)
	return &entity.ImageItem{
		URL:    rawURL,
		Width:  dims.Width,
		Height: dims.Height,
	}
}

// IsAnimated reports whether the URL's extension names an animated format.
func IsAnimated(rawURL string) bool {
	return animatedExts[utils.PathExt(rawURL)]
}

package repository

import (
	"context"
	"errors"

	"github.com/user/gallery-service/internal/entity"
)

// ErrScrollUnsupported is returned by page sessions that have no viewport
// (static HTML fetches). Callers treat scrolling as best-effort.
var ErrScrollUnsupported = errors.New("page session does not support scrolling")

// PageLoader opens a live view of a page.
type PageLoader interface {
	// Open loads pageURL and returns a session bound to it. The session
	// outlives ctx; ctx only bounds the initial load.
	Open(ctx context.Context, pageURL string) (PageSession, error)
}

// PageSession is one opened page. Implementations must not mutate the
// page's DOM other than through scrolling.
type PageSession interface {
	// URL is the page URL after redirects.
	URL() string
	// ScrollBy scrolls the viewport down by dy pixels.
	ScrollBy(ctx context.Context, dy int) error
	// ScrollToTop scrolls the viewport back to the top of the page.
	ScrollToTop(ctx context.Context) error
	// Snapshot serializes the current DOM.
	Snapshot(ctx context.Context) (*entity.PageSnapshot, error)
	// Close releases the page.
	Close() error
}

// Package extract discovers candidate image URLs in a parsed page.
//
// Each supported page shape is a Strategy. A Registry holds site strategies
// in priority order plus one fallback that handles every page; Select picks
// the first strategy that claims the page. Supporting a new site means
// writing a Strategy and listing it in DefaultRegistry, nothing else.
package extract

import (
	"fmt"

	"go.uber.org/zap"
)

// Strategy extracts raw candidate URLs from one kind of page.
type Strategy interface {
	// Name identifies the strategy in logs, metrics and scan history.
	Name() string
	// CanHandle reports whether the strategy applies to doc.
	CanHandle(doc *Document) bool
	// Extract returns candidate URLs in document order, duplicates allowed.
	// A malformed element is skipped; an error means nothing usable was found.
	Extract(doc *Document) ([]string, error)
}

// Registry selects the strategy for a page.
type Registry struct {
	strategies []Strategy
}

// NewRegistry builds a registry that tries strategies in order and falls
// back to fallback, which is always consulted last.
func NewRegistry(fallback Strategy, strategies ...Strategy) *Registry {
	ordered := make([]Strategy, 0, len(strategies)+1)
	ordered = append(ordered, strategies...)
	ordered = append(ordered, fallback)
	return &Registry{strategies: ordered}
}

// DefaultRegistry returns the registry with every built-in site strategy.
func DefaultRegistry(logger *zap.Logger) *Registry {
	return NewRegistry(
		DefaultStrategy{},
		NewBingStrategy(logger),
		NewGoogleStrategy(logger),
		DuckDuckGoStrategy{},
	)
}

// Select returns the first strategy whose CanHandle accepts doc. The
// fallback is returned when no site strategy matches.
func (r *Registry) Select(doc *Document) Strategy {
	for _, s := range r.strategies[:len(r.strategies)-1] {
		if s.CanHandle(doc) {
			return s
		}
	}
	return r.Fallback()
}

// Fallback returns the strategy used when nothing else matches.
func (r *Registry) Fallback() Strategy {
	return r.strategies[len(r.strategies)-1]
}

// Strategies returns the registered strategies in selection order.
func (r *Registry) Strategies() []Strategy {
	return append([]Strategy(nil), r.strategies...)
}

// SafeExtract runs s.Extract, converting a panic into an error.
func SafeExtract(s Strategy, doc *Document) (urls []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			urls = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Extract(doc)
}

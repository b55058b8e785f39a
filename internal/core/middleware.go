// Package core orders HTTP middleware by fixed priority.
package core

import (
	"cmp"
	"net/http"
	"slices"
)

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// middleware represents a single HTTP middleware with a deterministic
// execution order. Lower Order values run first.
type middleware struct {
	Name  string
	Wrap  Middleware
	Order int
}

// MiddlewareBuilder collects middleware entries and produces a sorted slice
// ready for chaining.
type MiddlewareBuilder struct {
	entries []middleware
}

// Add registers a middleware with the given order. A nil wrap is ignored.
func (b *MiddlewareBuilder) Add(order int, name string, wrap Middleware) {
	if wrap == nil {
		return
	}
	b.entries = append(b.entries, middleware{Name: name, Wrap: wrap, Order: order})
}

// Names returns the registered middleware names in execution order.
func (b *MiddlewareBuilder) Names() []string {
	b.sort()
	names := make([]string, len(b.entries))
	for i, m := range b.entries {
		names[i] = m.Name
	}
	return names
}

// Build sorts the collected middleware by Order (stable) and returns them
// outermost first.
func (b *MiddlewareBuilder) Build() []Middleware {
	b.sort()
	out := make([]Middleware, len(b.entries))
	for i, m := range b.entries {
		out[i] = m.Wrap
	}
	return out
}

func (b *MiddlewareBuilder) sort() {
	slices.SortStableFunc(b.entries, func(a, c middleware) int {
		return cmp.Compare(a.Order, c.Order)
	})
}

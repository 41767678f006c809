package reconcile

import (
	"context"

	"github.com/CaliLuke/go-dtograph/store"
)

// CurrentFrom returns a Current function that loads children through s.
func CurrentFrom[P, C any](s store.Store) func(ctx context.Context, parentField string, parent *P) ([]*C, error) {
	return func(ctx context.Context, parentField string, parent *P) ([]*C, error) {
		return store.LoadChildren[C](ctx, s, parentField, parent)
	}
}

// Detach returns an orphan handler that clears the back-reference with
// unlink and merges the child.
func Detach[C any](s store.Store, unlink func(child *C)) func(ctx context.Context, child *C) error {
	return func(ctx context.Context, child *C) error {
		unlink(child)
		return s.Merge(ctx, child)
	}
}

// Delete returns an orphan handler that removes the child.
func Delete[C any](s store.Store) func(ctx context.Context, child *C) error {
	return func(ctx context.Context, child *C) error {
		return s.Remove(ctx, child)
	}
}

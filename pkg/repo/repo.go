// Package repo defines the generic Repository interface, list options and the
// Neo4j session seam shared by graph-backed stores.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a keyed lookup matches nothing.
var ErrNotFound = errors.New("repo: not found")

// Repository is a generic keyed store over graph nodes.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Exists(ctx context.Context, id ID) (bool, error)
	Merge(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Offset int
	Limit  int
}

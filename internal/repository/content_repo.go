package repository

import (
	"context"

	"github.com/user/linkchecker-service/internal/entity"
)

// ContentRepository defines the contract for the content tree the link checker
// scans and mutates. Leaf values are strings or string slices.
type ContentRepository interface {
	// Ping reports whether the repository can be used at all.
	Ping(ctx context.Context) error
	// Exists reports whether a node lives at path.
	Exists(ctx context.Context, path string) (bool, error)
	// GetNode returns the node at path or ErrNodeNotFound.
	GetNode(ctx context.Context, path string) (*entity.Node, error)
	// ListChildren returns the direct children of path in insertion order.
	ListChildren(ctx context.Context, path string) ([]*entity.Node, error)
	// SetProperty writes a single property of an existing node.
	SetProperty(ctx context.Context, path, name string, value any) error
	// PutNode creates or fully replaces the node at path. Missing ancestors are created.
	PutNode(ctx context.Context, node *entity.Node) error
	// DeleteNode removes the node and its subtree. Deleting a missing node is not an error.
	DeleteNode(ctx context.Context, path string) error
}

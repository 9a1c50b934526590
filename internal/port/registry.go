package port

import "context"

// Registry assigns a stable, strictly increasing owner id per address on
// first sight. The engine treats ids as opaque keys and never holds
// addresses itself.
type Registry interface {
	IDOf(ctx context.Context, address string) (uint64, error)
}

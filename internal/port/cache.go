package port

import (
	"context"

	"github.com/evlasova/batch-auction/internal/domain"
)

// Cache holds read-side auction snapshots. A nil snapshot with a nil error
// means a miss.
type Cache interface {
	SetAuction(ctx context.Context, a *domain.AuctionSnapshot) error
	GetAuction(ctx context.Context, id uint64) (*domain.AuctionSnapshot, error)
	Invalidate(ctx context.Context, id uint64) error
}

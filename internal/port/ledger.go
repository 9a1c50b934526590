package port

import (
	"context"

	"github.com/evlasova/batch-auction/internal/domain"
)

// Ledger is the auction lifecycle bookkeeping collaborator. The engine writes
// a full snapshot after every state change and reloads on startup; auctions
// are never deleted, claims on historical auctions stay serviceable.
type Ledger interface {
	SaveAuction(ctx context.Context, a *domain.AuctionSnapshot) error
	LoadAuction(ctx context.Context, id uint64) (*domain.AuctionSnapshot, error)
	LoadAuctions(ctx context.Context) ([]*domain.AuctionSnapshot, error)
}

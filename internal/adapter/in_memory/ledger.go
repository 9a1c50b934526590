package in_memory

import (
	"context"
	"sync"

	"github.com/tidwall/btree"

	"github.com/evlasova/batch-auction/internal/domain"
	"github.com/evlasova/batch-auction/internal/port"
)

var _ port.Ledger = (*Ledger)(nil)

// Ledger keeps auction snapshots in a btree ordered by id, so LoadAuctions
// returns them in creation order the same way the postgres adapter does.
type Ledger struct {
	mu       sync.Mutex
	auctions *btree.BTreeG[*domain.AuctionSnapshot]
}

func NewLedger() *Ledger {
	return &Ledger{
		auctions: btree.NewBTreeG(func(a, b *domain.AuctionSnapshot) bool {
			return a.ID < b.ID
		}),
	}
}

func (l *Ledger) SaveAuction(ctx context.Context, a *domain.AuctionSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := *a
	l.auctions.Set(&snap)
	return nil
}

func (l *Ledger) LoadAuction(ctx context.Context, id uint64) (*domain.AuctionSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.auctions.Get(&domain.AuctionSnapshot{ID: id})
	if !ok {
		return nil, domain.ErrUnknownAuction
	}
	snap := *a
	return &snap, nil
}

func (l *Ledger) LoadAuctions(ctx context.Context) ([]*domain.AuctionSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := make([]*domain.AuctionSnapshot, 0, l.auctions.Len())
	l.auctions.Scan(func(a *domain.AuctionSnapshot) bool {
		snap := *a
		res = append(res, &snap)
		return true
	})
	return res, nil
}

package in_memory

import (
	"context"
	"sync"

	"github.com/evlasova/batch-auction/internal/domain"
	"github.com/evlasova/batch-auction/internal/port"
)

var _ port.Cache = (*Cache)(nil)

type Cache struct {
	mu    sync.Mutex
	store map[uint64]*domain.AuctionSnapshot
}

func NewCache() *Cache {
	return &Cache{store: make(map[uint64]*domain.AuctionSnapshot)}
}

func (c *Cache) SetAuction(ctx context.Context, a *domain.AuctionSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := *a
	c.store[a.ID] = &snap
	return nil
}

func (c *Cache) GetAuction(ctx context.Context, id uint64) (*domain.AuctionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.store[id]
	if !ok {
		return nil, nil
	}
	snap := *a
	return &snap, nil
}

func (c *Cache) Invalidate(ctx context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, id)
	return nil
}

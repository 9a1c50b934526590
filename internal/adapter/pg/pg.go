package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evlasova/batch-auction/internal/domain"
	"github.com/evlasova/batch-auction/internal/port"
)

var _ port.Ledger = (*Ledger)(nil)

// Ledger stores one JSONB row per auction. The snapshot is written whole on
// every state change, so a row is always a consistent view of its auction.
type Ledger struct {
	pool *pgxpool.Pool
}

// call Close when finished working with the database.
func NewLedger(ctx context.Context, dsn string) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &Ledger{pool: pool}, nil
}

func (l *Ledger) Close(ctx context.Context) {
	if l.pool != nil {
		l.pool.Close()
	}
}

func (l *Ledger) SaveAuction(ctx context.Context, a *domain.AuctionSnapshot) error {
	if a == nil {
		return errors.New("nil auction snapshot")
	}
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `
INSERT INTO auctions(id, snapshot_json, updated_at)
VALUES($1,$2,NOW())
ON CONFLICT (id) DO UPDATE SET snapshot_json = EXCLUDED.snapshot_json, updated_at = NOW()
`, a.ID, string(b))
	return err
}

func (l *Ledger) LoadAuction(ctx context.Context, id uint64) (*domain.AuctionSnapshot, error) {
	var data string
	err := l.pool.QueryRow(ctx, `SELECT snapshot_json FROM auctions WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUnknownAuction
	}
	if err != nil {
		return nil, err
	}
	var a domain.AuctionSnapshot
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadAuctions returns every stored auction ordered by id ASC.
func (l *Ledger) LoadAuctions(ctx context.Context) ([]*domain.AuctionSnapshot, error) {
	rows, err := l.pool.Query(ctx, `SELECT snapshot_json FROM auctions ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.AuctionSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a domain.AuctionSnapshot
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, err
		}
		res = append(res, &a)
	}
	return res, rows.Err()
}

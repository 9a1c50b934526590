package in_memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/evlasova/batch-auction/internal/port"
)

var _ port.Custody = (*Vault)(nil)

// Vault is a token custody backed by per-holder balances and a single escrow
// account. TransferIn debits the holder and credits escrow, TransferOut does
// the reverse. Balances never go negative.
type Vault struct {
	mu       sync.Mutex
	balances map[string]map[string]decimal.Decimal // token -> holder -> balance
	escrow   map[string]decimal.Decimal            // token -> escrowed total
}

func NewVault() *Vault {
	return &Vault{
		balances: make(map[string]map[string]decimal.Decimal),
		escrow:   make(map[string]decimal.Decimal),
	}
}

// Mint credits a holder out of thin air. Test and bootstrap helper.
func (v *Vault) Mint(token, holder string, amount decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.balances[token] == nil {
		v.balances[token] = make(map[string]decimal.Decimal)
	}
	v.balances[token][holder] = v.balances[token][holder].Add(amount)
}

func (v *Vault) BalanceOf(token, holder string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[token][holder]
}

func (v *Vault) Escrowed(token string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.escrow[token]
}

func (v *Vault) TransferIn(ctx context.Context, token, from string, amount decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal := v.balances[token][from]
	if bal.LessThan(amount) {
		return fmt.Errorf("insufficient %s balance of %s: have %s, need %s", token, from, bal, amount)
	}
	v.balances[token][from] = bal.Sub(amount)
	v.escrow[token] = v.escrow[token].Add(amount)
	return nil
}

func (v *Vault) TransferOut(ctx context.Context, token, to string, amount decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	held := v.escrow[token]
	if held.LessThan(amount) {
		return fmt.Errorf("escrow underflow on %s: held %s, requested %s", token, held, amount)
	}
	v.escrow[token] = held.Sub(amount)
	if v.balances[token] == nil {
		v.balances[token] = make(map[string]decimal.Decimal)
	}
	v.balances[token][to] = v.balances[token][to].Add(amount)
	return nil
}

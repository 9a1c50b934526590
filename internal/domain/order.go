package domain

import (
	"github.com/shopspring/decimal"
)

// Order is a single sealed bid. SellAmount is the payment the owner commits,
// BuyAmount the quantity of the auctioned asset requested. The implied unit
// price is SellAmount/BuyAmount (payment per unit of asset). Orders are
// immutable once admitted to an auction.
//
// The reserve order reuses the same shape with mirrored meaning: SellAmount
// is the supply offered for sale and BuyAmount the minimum acceptable total
// payment.
type Order struct {
	OwnerID    uint64          `json:"owner_id"`
	SellAmount decimal.Decimal `json:"sell_amount"`
	BuyAmount  decimal.Decimal `json:"buy_amount"`
}

// UnitPriceAbove reports whether o pays strictly more per unit of asset than
// other. Comparison is by cross multiplication, so it stays exact for any
// integral amounts.
func (o Order) UnitPriceAbove(other Order) bool {
	return o.SellAmount.Mul(other.BuyAmount).GreaterThan(other.SellAmount.Mul(o.BuyAmount))
}

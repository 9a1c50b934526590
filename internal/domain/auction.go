package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	// Bidding: before the deadline, orders may be placed.
	StatusBidding AuctionStatus = "BIDDING"
	// Closed: deadline passed, clearing price not yet computed.
	StatusClosed AuctionStatus = "CLOSED"
	// Cleared: clearing price set, claims are open.
	StatusCleared AuctionStatus = "CLEARED"
)

// ClearingResult captures the outcome of the price discovery walk: the
// marginal order's key, the exact uniform price as a fraction (payment per
// asset = Numerator/Denominator) and the portion of the marginal order's
// sellAmount that settles. A Volume of zero together with Key equal to the
// reserve order's key marks an auction where every bid refunds in full.
type ClearingResult struct {
	Key              OrderKey        `json:"key"`
	PriceNumerator   decimal.Decimal `json:"price_numerator"`
	PriceDenominator decimal.Decimal `json:"price_denominator"`
	Volume           decimal.Decimal `json:"volume"`
}

// ClaimResult is the settlement of a single bid order.
type ClaimResult struct {
	Key             OrderKey        `json:"key"`
	AssetReceived   decimal.Decimal `json:"asset_received"`
	PaymentRefunded decimal.Decimal `json:"payment_refunded"`
}

// AuctionSnapshot is the persisted and transported view of one auction.
// Orders appear in queue order, best price first.
type AuctionSnapshot struct {
	ID               uint64          `json:"id"`
	Asset            string          `json:"asset"`
	Payment          string          `json:"payment"`
	EndTime          time.Time       `json:"end_time"`
	Status           AuctionStatus   `json:"status"`
	Reserve          Order           `json:"reserve"`
	Orders           []Order         `json:"orders"`
	Clearing         *ClearingResult `json:"clearing,omitempty"`
	SoldAsset        decimal.Decimal `json:"sold_asset"`
	CollectedPayment decimal.Decimal `json:"collected_payment"`
	ClaimedOrders    []OrderKey      `json:"claimed_orders,omitempty"`
	ReserveClaimed   bool            `json:"reserve_claimed"`
	Timestamp        time.Time       `json:"timestamp"`
}

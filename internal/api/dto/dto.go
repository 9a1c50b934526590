package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type InitiateAuctionRequest struct {
	RequestID       string          `json:"request_id,omitempty"` // for deduplication
	Auctioneer      string          `json:"auctioneer" binding:"required"`
	Asset           string          `json:"asset" binding:"required"`
	Payment         string          `json:"payment" binding:"required"`
	DurationSeconds int64           `json:"duration_seconds" binding:"required"`
	Supply          decimal.Decimal `json:"supply" binding:"required"`
	MinPayment      decimal.Decimal `json:"min_payment" binding:"required"`
}

type InitiateAuctionResponse struct {
	AuctionID uint64 `json:"auction_id"`
	Message   string `json:"message,omitempty"`
}

type PlaceBidOrdersRequest struct {
	RequestID     string            `json:"request_id,omitempty"` // for deduplication
	Caller        string            `json:"caller" binding:"required"`
	SellAmounts   []decimal.Decimal `json:"sell_amounts" binding:"required"`
	BuyAmounts    []decimal.Decimal `json:"buy_amounts" binding:"required"`
	PositionHints []string          `json:"position_hints,omitempty"`
}

type PlaceBidOrdersResponse struct {
	OwnerID   uint64   `json:"owner_id"`
	OrderKeys []string `json:"order_keys"`
	Message   string   `json:"message,omitempty"`
}

type ClearingPriceRequest struct {
	Numerator   decimal.Decimal `json:"numerator"`
	Denominator decimal.Decimal `json:"denominator"`
}

type ClearingPriceResponse struct {
	MarginalOrderKey string          `json:"marginal_order_key"`
	PriceNumerator   decimal.Decimal `json:"price_numerator"`
	PriceDenominator decimal.Decimal `json:"price_denominator"`
	Volume           decimal.Decimal `json:"volume"`
}

type ClaimReserveRequest struct {
	Caller string `json:"caller" binding:"required"`
}

type ClaimReserveResponse struct {
	UnsoldAsset      decimal.Decimal `json:"unsold_asset"`
	CollectedPayment decimal.Decimal `json:"collected_payment"`
}

type ClaimBidOrdersRequest struct {
	Caller    string   `json:"caller" binding:"required"`
	OrderKeys []string `json:"order_keys" binding:"required"`
}

type ClaimBidOrdersResponse struct {
	Claims []Claim `json:"claims"`
}

type Claim struct {
	OrderKey        string          `json:"order_key"`
	AssetReceived   decimal.Decimal `json:"asset_received"`
	PaymentRefunded decimal.Decimal `json:"payment_refunded"`
}

type Order struct {
	OwnerID    uint64          `json:"owner_id"`
	SellAmount decimal.Decimal `json:"sell_amount"`
	BuyAmount  decimal.Decimal `json:"buy_amount"`
}

type Auction struct {
	ID               uint64          `json:"id"`
	Asset            string          `json:"asset"`
	Payment          string          `json:"payment"`
	EndTime          time.Time       `json:"end_time"`
	Status           string          `json:"status"`
	Reserve          Order           `json:"reserve"`
	Orders           []Order         `json:"orders"`
	SoldAsset        decimal.Decimal `json:"sold_asset"`
	CollectedPayment decimal.Decimal `json:"collected_payment"`
	ReserveClaimed   bool            `json:"reserve_claimed"`
	Timestamp        time.Time       `json:"timestamp"`
}

type GetAuctionResponse struct {
	Auction  Auction                `json:"auction"`
	Clearing *ClearingPriceResponse `json:"clearing,omitempty"`
}

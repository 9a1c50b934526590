package core

import (
	"github.com/shopspring/decimal"

	"github.com/evlasova/batch-auction/internal/domain"
)

// clearingOutcome is the full result of one price discovery walk. num/den is
// the exact uniform price (payment per unit of asset), volume the settled
// portion of the marginal order's sellAmount, soldAsset and collected the
// auction-wide totals used by the reserve order claim.
type clearingOutcome struct {
	num       decimal.Decimal
	den       decimal.Decimal
	key       domain.OrderKey
	volume    decimal.Decimal
	soldAsset decimal.Decimal
	collected decimal.Decimal
}

// computeClearing walks the queue from the best price downward, accumulating
// cumulative requested quantity and cumulative committed payment.
//
// Supply exhausted: the cumulative request reaches the supply at some order,
// which becomes marginal. The price is the cumulative payment through the
// marginal order spread over the full supply; the marginal order settles only
// the payment needed to buy the remaining supply at that price, capped at its
// own sellAmount.
//
// Demand exhausted: the queue ends first. The last order is marginal and
// settles in full, at the total payment spread over the full supply. If the
// total payment stays below the reserve order's minimum, the auction instead
// clears at the reserve price with zero volume and every bid refunds in
// full. An empty queue degenerates to the same zero-volume result.
//
// Integer divisions truncate toward zero, always in the auctioneer's favor.
func computeClearing(reserve domain.Order, reserveKey domain.OrderKey, q *OrderQueue) clearingOutcome {
	supply := reserve.SellAmount
	minPayment := reserve.BuyAmount

	sumDemand := decimal.Zero
	sumPayment := decimal.Zero
	var last domain.OrderKey
	haveLast := false

	for key, ok := q.First(); ok; key, ok = q.Next(key) {
		o := domain.DecodeOrder(key)
		if sumDemand.Add(o.BuyAmount).GreaterThanOrEqual(supply) {
			num := sumPayment.Add(o.SellAmount)
			remaining := supply.Sub(sumDemand)
			needed := floorDiv(remaining.Mul(num), supply)
			volume := decimal.Min(o.SellAmount, needed)
			return clearingOutcome{
				num:       num,
				den:       supply,
				key:       key,
				volume:    volume,
				soldAsset: sumDemand.Add(floorDiv(volume.Mul(supply), num)),
				collected: sumPayment.Add(volume),
			}
		}
		sumDemand = sumDemand.Add(o.BuyAmount)
		sumPayment = sumPayment.Add(o.SellAmount)
		last, haveLast = key, true
	}

	if !haveLast || sumPayment.LessThan(minPayment) {
		return clearingOutcome{
			num:       minPayment,
			den:       supply,
			key:       reserveKey,
			volume:    decimal.Zero,
			soldAsset: decimal.Zero,
			collected: decimal.Zero,
		}
	}

	marginal := domain.DecodeOrder(last)
	soldMarginal := floorDiv(marginal.SellAmount.Mul(supply), sumPayment)
	return clearingOutcome{
		num:       sumPayment,
		den:       supply,
		key:       last,
		volume:    marginal.SellAmount,
		soldAsset: sumDemand.Sub(marginal.BuyAmount).Add(soldMarginal),
		collected: sumPayment,
	}
}

// floorDiv is a/b truncated toward zero. Both operands are non-negative
// integers everywhere it is used.
func floorDiv(a, b decimal.Decimal) decimal.Decimal {
	quo, _ := a.QuoRem(b, 0)
	return quo
}

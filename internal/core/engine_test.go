package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlasova/batch-auction/internal/adapter/in_memory"
	"github.com/evlasova/batch-auction/internal/domain"
)

const (
	assetToken   = "AUC"
	paymentToken = "PAY"
	auctioneer   = "alice"
)

type fixture struct {
	eng      *Engine
	ledger   *in_memory.Ledger
	vault    *in_memory.Vault
	registry *in_memory.Registry
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   in_memory.NewLedger(),
		vault:    in_memory.NewVault(),
		registry: in_memory.NewRegistry(),
		now:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.eng = NewEngine(f.ledger, f.vault, f.registry, in_memory.NewCache(),
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) openAuction(t *testing.T, supply, minPayment string) uint64 {
	t.Helper()
	f.vault.Mint(assetToken, auctioneer, dec(supply))
	id, err := f.eng.InitiateAuction(context.Background(), auctioneer, assetToken, paymentToken,
		time.Hour, dec(supply), dec(minPayment))
	require.NoError(t, err)
	return id
}

func (f *fixture) bid(t *testing.T, id uint64, caller, sell, buy string) domain.OrderKey {
	t.Helper()
	f.vault.Mint(paymentToken, caller, dec(sell))
	_, keys, err := f.eng.PlaceBidOrders(context.Background(), caller, id,
		[]decimal.Decimal{dec(sell)}, []decimal.Decimal{dec(buy)}, nil)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	return keys[0]
}

func TestInitiateAuctionEscrowsSupply(t *testing.T) {
	f := newFixture(t)
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")

	assert.Equal(t, uint64(1), id)
	assert.True(t, f.vault.Escrowed(assetToken).Equal(dec("1000000000000000000")))
	assert.True(t, f.vault.BalanceOf(assetToken, auctioneer).IsZero())

	snap, err := f.eng.GetAuction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBidding, snap.Status)
	assert.Empty(t, snap.Orders)
}

func TestInitiateAuctionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.InitiateAuction(ctx, auctioneer, assetToken, assetToken, time.Hour, dec("10"), dec("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidAuctionParams)

	_, err = f.eng.InitiateAuction(ctx, auctioneer, assetToken, paymentToken, 0, dec("10"), dec("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidAuctionParams)

	_, err = f.eng.InitiateAuction(ctx, auctioneer, assetToken, paymentToken, time.Hour, dec("0"), dec("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidAuctionParams)

	_, err = f.eng.InitiateAuction(ctx, auctioneer, assetToken, paymentToken, time.Hour, dec("10.5"), dec("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidAuctionParams)

	// unfunded auctioneer
	_, err = f.eng.InitiateAuction(ctx, auctioneer, assetToken, paymentToken, time.Hour, dec("10"), dec("10"))
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
}

func TestPlaceBidOrdersAdmission(t *testing.T) {
	f := newFixture(t)
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")
	ctx := context.Background()
	f.vault.Mint(paymentToken, "bob", dec("10000000000000000000"))

	place := func(sell, buy string) error {
		_, _, err := f.eng.PlaceBidOrders(ctx, "bob", id,
			[]decimal.Decimal{dec(sell)}, []decimal.Decimal{dec(buy)}, nil)
		return err
	}

	// supply/5000 exactly is still too small, the bound is strict
	assert.ErrorIs(t, place("200000000000000", "100000000000000"), domain.ErrOrderTooSmall)
	// price equal to the reserve's is rejected
	assert.ErrorIs(t, place("2000000000000000000", "2000000000000000000"), domain.ErrWorseThanReserve)
	assert.ErrorIs(t, place("2000000000000000000", "3000000000000000000"), domain.ErrWorseThanReserve)
	// amounts must be positive integers
	assert.ErrorIs(t, place("0", "1000000000000000000"), domain.ErrInvalidAmount)
	assert.ErrorIs(t, place("2000000000000000000", "0.5"), domain.ErrInvalidAmount)

	_, _, err := f.eng.PlaceBidOrders(ctx, "bob", id,
		[]decimal.Decimal{dec("1")}, []decimal.Decimal{dec("1"), dec("2")}, nil)
	assert.ErrorIs(t, err, domain.ErrMismatchedArguments)

	_, _, err = f.eng.PlaceBidOrders(ctx, "bob", 99,
		[]decimal.Decimal{dec("1")}, []decimal.Decimal{dec("1")}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAuction)

	// nothing was admitted
	snap, err := f.eng.GetAuction(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, snap.Orders)
	assert.True(t, f.vault.Escrowed(paymentToken).IsZero())
}

func TestPlaceBidOrdersDuplicateSkipped(t *testing.T) {
	f := newFixture(t)
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")
	ctx := context.Background()

	f.bid(t, id, "bob", "2000000000000000000", "200000000000000000")
	charged := f.vault.Escrowed(paymentToken)

	f.vault.Mint(paymentToken, "bob", dec("2000000000000000000"))
	_, keys, err := f.eng.PlaceBidOrders(ctx, "bob", id,
		[]decimal.Decimal{dec("2000000000000000000")}, []decimal.Decimal{dec("200000000000000000")}, nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.True(t, f.vault.Escrowed(paymentToken).Equal(charged))
}

func TestPlaceBidOrdersRollsBackOnFailedTransfer(t *testing.T) {
	f := newFixture(t)
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")

	// eve never funded
	_, _, err := f.eng.PlaceBidOrders(context.Background(), "eve", id,
		[]decimal.Decimal{dec("2000000000000000000")}, []decimal.Decimal{dec("200000000000000000")}, nil)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	assert.Equal(t, 0, f.eng.auctions[id].Queue.Len())
	assert.True(t, f.vault.Escrowed(paymentToken).IsZero())
}

func TestPlaceBidOrdersRollsBackOnBadHint(t *testing.T) {
	f := newFixture(t)
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")
	ctx := context.Background()
	f.vault.Mint(paymentToken, "bob", dec("10000000000000000000"))

	badHint, err := domain.EncodeOrder(domain.Order{OwnerID: 99, SellAmount: dec("7"), BuyAmount: dec("1")})
	require.NoError(t, err)

	_, _, err = f.eng.PlaceBidOrders(ctx, "bob", id,
		[]decimal.Decimal{dec("2000000000000000000"), dec("3000000000000000000")},
		[]decimal.Decimal{dec("200000000000000000"), dec("300000000000000000")},
		[]domain.OrderKey{{}, badHint})
	assert.ErrorIs(t, err, domain.ErrInvalidPositionHint)

	// the first order of the batch was unlinked again
	assert.Equal(t, 0, f.eng.auctions[id].Queue.Len())
	assert.True(t, f.vault.Escrowed(paymentToken).IsZero())
}

func TestFullAuctionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")

	bobKey := f.bid(t, id, "bob", "2000000000000000000", "200000000000000000")     // price 10
	carolKey := f.bid(t, id, "carol", "2000000000000000000", "1000000000000000000") // price 2
	daveKey := f.bid(t, id, "dave", "2000000000000000001", "2000000000000000000")   // price ~1

	assert.True(t, f.vault.Escrowed(paymentToken).Equal(dec("6000000000000000001")))

	// still in the bidding phase
	_, err := f.eng.ComputeClearingPrice(ctx, id, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrNotYetFinished)
	_, _, err = f.eng.ClaimReserveOrder(ctx, auctioneer, id)
	assert.ErrorIs(t, err, domain.ErrNotYetFinished)

	f.now = f.now.Add(2 * time.Hour)

	// deadline passed, no more orders
	f.vault.Mint(paymentToken, "late", dec("2000000000000000000"))
	_, _, err = f.eng.PlaceBidOrders(ctx, "late", id,
		[]decimal.Decimal{dec("2000000000000000000")}, []decimal.Decimal{dec("200000000000000000")}, nil)
	assert.ErrorIs(t, err, domain.ErrNotInBiddingPhase)

	// a made-up candidate fraction is rejected
	_, err = f.eng.ComputeClearingPrice(ctx, id, dec("3"), dec("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidClearingPrice)

	derived, err := f.eng.CalculateClearingPrice(ctx, id)
	require.NoError(t, err)

	res, err := f.eng.ComputeClearingPrice(ctx, id, derived.PriceNumerator, derived.PriceDenominator)
	require.NoError(t, err)
	assert.Equal(t, carolKey, res.Key)
	assert.True(t, res.PriceNumerator.Equal(dec("4000000000000000000")))
	assert.True(t, res.PriceDenominator.Equal(dec("1000000000000000000")))
	assert.True(t, res.Volume.Equal(dec("2000000000000000000")))

	_, err = f.eng.ComputeClearingPrice(ctx, id, derived.PriceNumerator, derived.PriceDenominator)
	assert.ErrorIs(t, err, domain.ErrAlreadyCleared)

	// claims
	claims, err := f.eng.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{bobKey})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.True(t, claims[0].AssetReceived.Equal(dec("200000000000000000")))
	assert.True(t, claims[0].PaymentRefunded.IsZero())
	assert.True(t, f.vault.BalanceOf(assetToken, "bob").Equal(dec("200000000000000000")))

	_, err = f.eng.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{bobKey})
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	_, err = f.eng.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{carolKey})
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	unknown, err := domain.EncodeOrder(domain.Order{OwnerID: 42, SellAmount: dec("9"), BuyAmount: dec("1")})
	require.NoError(t, err)
	_, err = f.eng.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{unknown})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	claims, err = f.eng.ClaimBidOrders(ctx, "carol", id, []domain.OrderKey{carolKey})
	require.NoError(t, err)
	assert.True(t, claims[0].AssetReceived.Equal(dec("500000000000000000")))
	assert.True(t, claims[0].PaymentRefunded.IsZero())

	claims, err = f.eng.ClaimBidOrders(ctx, "dave", id, []domain.OrderKey{daveKey})
	require.NoError(t, err)
	assert.True(t, claims[0].AssetReceived.IsZero())
	assert.True(t, claims[0].PaymentRefunded.Equal(dec("2000000000000000001")))

	// reserve claim
	_, _, err = f.eng.ClaimReserveOrder(ctx, "bob", id)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	unsold, collected, err := f.eng.ClaimReserveOrder(ctx, auctioneer, id)
	require.NoError(t, err)
	assert.True(t, unsold.Equal(dec("300000000000000000")))
	assert.True(t, collected.Equal(dec("4000000000000000000")))

	_, _, err = f.eng.ClaimReserveOrder(ctx, auctioneer, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// escrow fully drained
	assert.True(t, f.vault.Escrowed(assetToken).IsZero())
	assert.True(t, f.vault.Escrowed(paymentToken).IsZero())
}

func TestFailedAuctionRefundsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")

	bidKey := f.bid(t, id, "bob", "100000000000000000", "50000000000000000")

	f.now = f.now.Add(2 * time.Hour)
	res, err := f.eng.ComputeClearingPrice(ctx, id, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, res.Volume.IsZero())

	claims, err := f.eng.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{bidKey})
	require.NoError(t, err)
	assert.True(t, claims[0].AssetReceived.IsZero())
	assert.True(t, claims[0].PaymentRefunded.Equal(dec("100000000000000000")))

	unsold, collected, err := f.eng.ClaimReserveOrder(ctx, auctioneer, id)
	require.NoError(t, err)
	assert.True(t, unsold.Equal(dec("1000000000000000000")))
	assert.True(t, collected.IsZero())

	assert.True(t, f.vault.BalanceOf(assetToken, auctioneer).Equal(dec("1000000000000000000")))
	assert.True(t, f.vault.BalanceOf(paymentToken, "bob").Equal(dec("100000000000000000")))
}

func TestClaimBidOrdersRejectsRepeatedKeyInBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")

	bobKey := f.bid(t, id, "bob", "2000000000000000000", "200000000000000000")
	f.bid(t, id, "carol", "2000000000000000000", "1000000000000000000")

	f.now = f.now.Add(2 * time.Hour)
	_, err := f.eng.ComputeClearingPrice(ctx, id, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	escrowed := f.vault.Escrowed(assetToken)
	_, err = f.eng.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{bobKey, bobKey})
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// no payout and no claim mark from the rejected batch
	assert.True(t, f.vault.BalanceOf(assetToken, "bob").IsZero())
	assert.True(t, f.vault.Escrowed(assetToken).Equal(escrowed))

	claims, err := f.eng.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{bobKey})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.True(t, f.vault.BalanceOf(assetToken, "bob").Equal(dec("200000000000000000")))
}

func TestGetAuctionReportsClosedAfterDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")

	// warm the cache while bidding is open
	snap, err := f.eng.GetAuction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBidding, snap.Status)

	f.now = f.now.Add(2 * time.Hour)

	// the cached snapshot predates the deadline; the read must not report it
	snap, err = f.eng.GetAuction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, snap.Status)
}

func TestEngineRestartFromLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")

	bobKey := f.bid(t, id, "bob", "2000000000000000000", "200000000000000000")
	carolKey := f.bid(t, id, "carol", "2000000000000000000", "1000000000000000000")

	f.now = f.now.Add(2 * time.Hour)
	_, err := f.eng.ComputeClearingPrice(ctx, id, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	_, err = f.eng.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{bobKey})
	require.NoError(t, err)

	// second engine over the same ledger, vault and registry
	restarted := NewEngine(f.ledger, f.vault, f.registry, in_memory.NewCache(),
		WithClock(func() time.Time { return f.now }))
	require.NoError(t, restarted.LoadAuctionsFromLedger(ctx))

	// claimed state survived
	_, err = restarted.ClaimBidOrders(ctx, "bob", id, []domain.OrderKey{bobKey})
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// unclaimed orders are still serviceable
	claims, err := restarted.ClaimBidOrders(ctx, "carol", id, []domain.OrderKey{carolKey})
	require.NoError(t, err)
	require.Len(t, claims, 1)

	// a fresh auction continues the id sequence
	f.vault.Mint(assetToken, auctioneer, dec("1000000000000000000"))
	next, err := restarted.InitiateAuction(ctx, auctioneer, assetToken, paymentToken,
		time.Hour, dec("1000000000000000000"), dec("1000000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
}

func TestPlaceBidOrdersWithGoodHints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAuction(t, "1000000000000000000", "1000000000000000000")

	first := f.bid(t, id, "bob", "3000000000000000000", "300000000000000000")

	f.vault.Mint(paymentToken, "carol", dec("2000000000000000000"))
	_, keys, err := f.eng.PlaceBidOrders(ctx, "carol", id,
		[]decimal.Decimal{dec("2000000000000000000")},
		[]decimal.Decimal{dec("1000000000000000000")},
		[]domain.OrderKey{first})
	require.NoError(t, err)
	require.Len(t, keys, 1)

	assert.Equal(t, []domain.OrderKey{first, keys[0]}, f.eng.auctions[id].Queue.Keys())
}

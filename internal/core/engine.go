package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/evlasova/batch-auction/internal/domain"
	"github.com/evlasova/batch-auction/internal/port"
)

// minOrderSizeDivisor bounds the number of admissible orders: every bid must
// commit strictly more than supply/minOrderSizeDivisor of payment, so a full
// queue costs real money to build.
const minOrderSizeDivisor = 5000

var minOrderDivisorDec = decimal.NewFromInt(minOrderSizeDivisor)

// auction is the in-memory state of one auction. All access is serialized by
// the engine mutex.
type auction struct {
	ID         uint64
	Asset      string
	Payment    string
	EndTime    time.Time
	Reserve    domain.Order
	ReserveKey domain.OrderKey

	Queue            *OrderQueue
	Clearing         *domain.ClearingResult
	SoldAsset        decimal.Decimal
	CollectedPayment decimal.Decimal

	claimed        map[domain.OrderKey]bool
	reserveClaimed bool
}

func (a *auction) status(now time.Time) domain.AuctionStatus {
	switch {
	case a.Clearing != nil:
		return domain.StatusCleared
	case now.Before(a.EndTime):
		return domain.StatusBidding
	default:
		return domain.StatusClosed
	}
}

// Engine runs sealed-bid batch auctions. One mutex serializes all state
// transitions; reads of settled state go through the cache where possible.
// The ledger is written behind every state change: a persistence failure is
// logged and does not roll back the in-memory transition.
type Engine struct {
	mu       sync.Mutex
	auctions map[uint64]*auction
	nextID   uint64

	ledger   port.Ledger
	custody  port.Custody
	registry port.Registry
	cache    port.Cache

	now func() time.Time
	log zerolog.Logger
}

type Option func(*Engine)

// WithClock replaces the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func NewEngine(ledger port.Ledger, custody port.Custody, registry port.Registry, cache port.Cache, opts ...Option) *Engine {
	e := &Engine{
		auctions: make(map[uint64]*auction),
		nextID:   1,
		ledger:   ledger,
		custody:  custody,
		registry: registry,
		cache:    cache,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InitiateAuction opens a new auction selling supply units of asset against
// payment, with minPayment the lowest acceptable total. The supply is pulled
// from the auctioneer into escrow before the auction becomes visible.
func (e *Engine) InitiateAuction(ctx context.Context, auctioneer, asset, payment string, duration time.Duration, supply, minPayment decimal.Decimal) (uint64, error) {
	if asset == "" || payment == "" || asset == payment || duration <= 0 {
		return 0, domain.ErrInvalidAuctionParams
	}
	if !supply.IsPositive() || !minPayment.IsPositive() {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidAuctionParams, domain.ErrInvalidAmount)
	}

	ownerID, err := e.registry.IDOf(ctx, auctioneer)
	if err != nil {
		return 0, fmt.Errorf("resolve auctioneer id: %w", err)
	}
	reserve := domain.Order{OwnerID: ownerID, SellAmount: supply, BuyAmount: minPayment}
	reserveKey, err := domain.EncodeOrder(reserve)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidAuctionParams, err)
	}

	if err := e.custody.TransferIn(ctx, asset, auctioneer, supply); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a := &auction{
		ID:               e.nextID,
		Asset:            asset,
		Payment:          payment,
		EndTime:          e.now().Add(duration),
		Reserve:          reserve,
		ReserveKey:       reserveKey,
		Queue:            NewOrderQueue(),
		SoldAsset:        decimal.Zero,
		CollectedPayment: decimal.Zero,
		claimed:          make(map[domain.OrderKey]bool),
	}
	e.nextID++
	e.auctions[a.ID] = a
	e.persist(ctx, a)

	e.log.Info().
		Uint64("auction_id", a.ID).
		Str("asset", asset).
		Str("payment", payment).
		Str("supply", supply.String()).
		Str("min_payment", minPayment.String()).
		Time("end_time", a.EndTime).
		Msg("auction initiated")
	return a.ID, nil
}

// PlaceBidOrders admits a batch of bids from one caller. The batch is atomic:
// any admission failure, bad hint or failed payment transfer rejects the
// whole call and leaves the queue as it was. Exact duplicates of orders
// already in the queue are skipped without charge. Returns the caller's owner
// id and the keys of the orders actually inserted.
func (e *Engine) PlaceBidOrders(ctx context.Context, caller string, auctionID uint64, sellAmounts, buyAmounts []decimal.Decimal, hints []domain.OrderKey) (uint64, []domain.OrderKey, error) {
	if len(sellAmounts) != len(buyAmounts) || (len(hints) != 0 && len(hints) != len(sellAmounts)) {
		return 0, nil, domain.ErrMismatchedArguments
	}

	ownerID, err := e.registry.IDOf(ctx, caller)
	if err != nil {
		return 0, nil, fmt.Errorf("resolve owner id: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return 0, nil, domain.ErrUnknownAuction
	}
	if a.status(e.now()) != domain.StatusBidding {
		return 0, nil, domain.ErrNotInBiddingPhase
	}

	inserted := make([]domain.OrderKey, 0, len(sellAmounts))
	total := decimal.Zero
	rollback := func() {
		for _, k := range inserted {
			a.Queue.unlink(k)
		}
	}

	for i := range sellAmounts {
		o := domain.Order{OwnerID: ownerID, SellAmount: sellAmounts[i], BuyAmount: buyAmounts[i]}
		key, err := a.admit(o)
		if err != nil {
			rollback()
			return 0, nil, err
		}
		var hint domain.OrderKey
		if len(hints) != 0 {
			hint = hints[i]
		}
		placed, err := a.Queue.Insert(key, hint)
		if err != nil {
			rollback()
			return 0, nil, err
		}
		if placed {
			inserted = append(inserted, key)
			total = total.Add(o.SellAmount)
		}
	}

	if total.IsPositive() {
		if err := e.custody.TransferIn(ctx, a.Payment, caller, total); err != nil {
			rollback()
			return 0, nil, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
		}
	}
	e.persist(ctx, a)

	e.log.Info().
		Uint64("auction_id", a.ID).
		Uint64("owner_id", ownerID).
		Int("orders", len(inserted)).
		Str("committed", total.String()).
		Msg("bid orders placed")
	return ownerID, inserted, nil
}

// admit validates one bid against the auction's reserve order and returns its
// key. Amount bounds are enforced by the key encoding itself.
func (a *auction) admit(o domain.Order) (domain.OrderKey, error) {
	if !o.SellAmount.IsPositive() || !o.BuyAmount.IsPositive() {
		return domain.OrderKey{}, domain.ErrInvalidAmount
	}
	key, err := domain.EncodeOrder(o)
	if err != nil {
		return domain.OrderKey{}, err
	}
	if !o.SellAmount.Mul(minOrderDivisorDec).GreaterThan(a.Reserve.SellAmount) {
		return domain.OrderKey{}, domain.ErrOrderTooSmall
	}
	if !o.SellAmount.Mul(a.Reserve.SellAmount).GreaterThan(o.BuyAmount.Mul(a.Reserve.BuyAmount)) {
		return domain.OrderKey{}, domain.ErrWorseThanReserve
	}
	return key, nil
}

// CalculateClearingPrice derives the clearing boundary for the current queue
// without settling anything. Useful for callers preparing the candidate
// fraction for ComputeClearingPrice.
func (e *Engine) CalculateClearingPrice(ctx context.Context, auctionID uint64) (*domain.ClearingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return nil, domain.ErrUnknownAuction
	}
	if a.Clearing != nil {
		return a.Clearing, nil
	}
	out := computeClearing(a.Reserve, a.ReserveKey, a.Queue)
	return &domain.ClearingResult{
		Key:              out.key,
		PriceNumerator:   out.num,
		PriceDenominator: out.den,
		Volume:           out.volume,
	}, nil
}

// ComputeClearingPrice settles the auction at the candidate price fraction.
// The engine re-derives the boundary from the queue and accepts the candidate
// only when it is ratio-equal to the derived one; passing zero for both parts
// accepts the derived boundary directly. Callable once, after the deadline.
func (e *Engine) ComputeClearingPrice(ctx context.Context, auctionID uint64, numerator, denominator decimal.Decimal) (*domain.ClearingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return nil, domain.ErrUnknownAuction
	}
	switch a.status(e.now()) {
	case domain.StatusBidding:
		return nil, domain.ErrNotYetFinished
	case domain.StatusCleared:
		return nil, domain.ErrAlreadyCleared
	}

	out := computeClearing(a.Reserve, a.ReserveKey, a.Queue)
	if !numerator.IsZero() || !denominator.IsZero() {
		if !numerator.IsPositive() || !denominator.IsPositive() {
			return nil, domain.ErrInvalidClearingPrice
		}
		if !numerator.Mul(out.den).Equal(denominator.Mul(out.num)) {
			return nil, domain.ErrInvalidClearingPrice
		}
	}

	a.Clearing = &domain.ClearingResult{
		Key:              out.key,
		PriceNumerator:   out.num,
		PriceDenominator: out.den,
		Volume:           out.volume,
	}
	a.SoldAsset = out.soldAsset
	a.CollectedPayment = out.collected
	e.persist(ctx, a)

	e.log.Info().
		Uint64("auction_id", a.ID).
		Str("marginal_order", out.key.String()).
		Str("price_numerator", out.num.String()).
		Str("price_denominator", out.den.String()).
		Str("volume", out.volume.String()).
		Str("sold_asset", out.soldAsset.String()).
		Msg("auction cleared")
	return a.Clearing, nil
}

// ClaimReserveOrder pays the auctioneer: the unsold remainder of the supply
// plus every unit of payment consumed at the clearing price. Callable once,
// only by the reserve order's owner, only after clearing.
func (e *Engine) ClaimReserveOrder(ctx context.Context, caller string, auctionID uint64) (unsoldAsset, collectedPayment decimal.Decimal, err error) {
	ownerID, err := e.registry.IDOf(ctx, caller)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("resolve owner id: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return decimal.Zero, decimal.Zero, domain.ErrUnknownAuction
	}
	if a.Clearing == nil {
		return decimal.Zero, decimal.Zero, domain.ErrNotYetFinished
	}
	if ownerID != a.Reserve.OwnerID {
		return decimal.Zero, decimal.Zero, domain.ErrNotOwner
	}
	if a.reserveClaimed {
		return decimal.Zero, decimal.Zero, domain.ErrAlreadyClaimed
	}

	unsold := a.Reserve.SellAmount.Sub(a.SoldAsset)
	collected := a.CollectedPayment

	a.reserveClaimed = true
	if err := e.payOut(ctx, a.Asset, caller, unsold); err != nil {
		a.reserveClaimed = false
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.payOut(ctx, a.Payment, caller, collected); err != nil {
		a.reserveClaimed = false
		return decimal.Zero, decimal.Zero, err
	}
	e.persist(ctx, a)

	e.log.Info().
		Uint64("auction_id", a.ID).
		Uint64("owner_id", ownerID).
		Str("unsold_asset", unsold.String()).
		Str("collected_payment", collected.String()).
		Msg("reserve order claimed")
	return unsold, collected, nil
}

// ClaimBidOrders settles the caller's orders after clearing. The batch is
// atomic: an unknown, foreign or already claimed key rejects the whole call
// before any transfer happens.
func (e *Engine) ClaimBidOrders(ctx context.Context, caller string, auctionID uint64, keys []domain.OrderKey) ([]domain.ClaimResult, error) {
	ownerID, err := e.registry.IDOf(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("resolve owner id: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return nil, domain.ErrUnknownAuction
	}
	if a.Clearing == nil {
		return nil, domain.ErrNotYetFinished
	}

	results := make([]domain.ClaimResult, 0, len(keys))
	seen := make(map[domain.OrderKey]bool, len(keys))
	totalAsset := decimal.Zero
	totalRefund := decimal.Zero
	for _, key := range keys {
		if !a.Queue.Contains(key) {
			return nil, domain.ErrOrderNotFound
		}
		if domain.DecodeOrder(key).OwnerID != ownerID {
			return nil, domain.ErrNotOwner
		}
		if a.claimed[key] || seen[key] {
			return nil, domain.ErrAlreadyClaimed
		}
		seen[key] = true
		r := a.settleOrder(key)
		results = append(results, r)
		totalAsset = totalAsset.Add(r.AssetReceived)
		totalRefund = totalRefund.Add(r.PaymentRefunded)
	}

	for _, r := range results {
		a.claimed[r.Key] = true
	}
	unmark := func() {
		for _, r := range results {
			delete(a.claimed, r.Key)
		}
	}
	if err := e.payOut(ctx, a.Asset, caller, totalAsset); err != nil {
		unmark()
		return nil, err
	}
	if err := e.payOut(ctx, a.Payment, caller, totalRefund); err != nil {
		unmark()
		return nil, err
	}
	e.persist(ctx, a)

	e.log.Info().
		Uint64("auction_id", a.ID).
		Uint64("owner_id", ownerID).
		Int("orders", len(results)).
		Str("asset_out", totalAsset.String()).
		Str("payment_refunded", totalRefund.String()).
		Msg("bid orders claimed")
	return results, nil
}

// settleOrder applies the claim table for one order of a cleared auction.
func (a *auction) settleOrder(key domain.OrderKey) domain.ClaimResult {
	o := domain.DecodeOrder(key)
	c := a.Clearing

	// Zero-volume clearing at the reserve price: every bid refunds in full.
	if c.Key == a.ReserveKey {
		return domain.ClaimResult{Key: key, AssetReceived: decimal.Zero, PaymentRefunded: o.SellAmount}
	}
	if key == c.Key {
		return domain.ClaimResult{
			Key:             key,
			AssetReceived:   floorDiv(c.Volume.Mul(c.PriceDenominator), c.PriceNumerator),
			PaymentRefunded: o.SellAmount.Sub(c.Volume),
		}
	}
	if domain.KeyRanksAbove(key, c.Key) {
		return domain.ClaimResult{Key: key, AssetReceived: o.BuyAmount, PaymentRefunded: decimal.Zero}
	}
	return domain.ClaimResult{Key: key, AssetReceived: decimal.Zero, PaymentRefunded: o.SellAmount}
}

func (e *Engine) payOut(ctx context.Context, token, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := e.custody.TransferOut(ctx, token, to, amount); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}
	return nil
}

// GetAuction returns the auction's snapshot, cache first. A cached snapshot
// carries the status as of its write, so the bidding deadline is re-checked
// against the clock before it is returned.
func (e *Engine) GetAuction(ctx context.Context, auctionID uint64) (*domain.AuctionSnapshot, error) {
	if snap, err := e.cache.GetAuction(ctx, auctionID); err == nil && snap != nil {
		if snap.Status == domain.StatusBidding && !e.now().Before(snap.EndTime) {
			snap.Status = domain.StatusClosed
		}
		return snap, nil
	} else if err != nil {
		e.log.Warn().Err(err).Uint64("auction_id", auctionID).Msg("auction cache read failed")
	}

	e.mu.Lock()
	a, ok := e.auctions[auctionID]
	if !ok {
		e.mu.Unlock()
		return nil, domain.ErrUnknownAuction
	}
	snap := e.snapshot(a)
	e.mu.Unlock()

	if err := e.cache.SetAuction(ctx, snap); err != nil {
		e.log.Warn().Err(err).Uint64("auction_id", auctionID).Msg("auction cache write failed")
	}
	return snap, nil
}

// snapshot builds the persisted view of a. Caller holds the engine mutex.
func (e *Engine) snapshot(a *auction) *domain.AuctionSnapshot {
	keys := a.Queue.Keys()
	orders := make([]domain.Order, len(keys))
	var claimedKeys []domain.OrderKey
	for i, k := range keys {
		orders[i] = domain.DecodeOrder(k)
		if a.claimed[k] {
			claimedKeys = append(claimedKeys, k)
		}
	}
	return &domain.AuctionSnapshot{
		ID:               a.ID,
		Asset:            a.Asset,
		Payment:          a.Payment,
		EndTime:          a.EndTime,
		Status:           a.status(e.now()),
		Reserve:          a.Reserve,
		Orders:           orders,
		Clearing:         a.Clearing,
		SoldAsset:        a.SoldAsset,
		CollectedPayment: a.CollectedPayment,
		ClaimedOrders:    claimedKeys,
		ReserveClaimed:   a.reserveClaimed,
		Timestamp:        e.now(),
	}
}

// persist writes the snapshot behind the in-memory transition. Failures are
// logged, not propagated: the in-memory state is authoritative until restart.
// Caller holds the engine mutex.
func (e *Engine) persist(ctx context.Context, a *auction) {
	snap := e.snapshot(a)
	if err := e.ledger.SaveAuction(ctx, snap); err != nil {
		e.log.Warn().Err(err).Uint64("auction_id", a.ID).Msg("ledger write failed")
	}
	if err := e.cache.SetAuction(ctx, snap); err != nil {
		e.log.Warn().Err(err).Uint64("auction_id", a.ID).Msg("auction cache write failed")
	}
}

// LoadAuctionsFromLedger rebuilds in-memory state on startup. Queue order in
// the snapshot is already the ranking order, so each order is re-inserted
// with its predecessor as the hint.
func (e *Engine) LoadAuctionsFromLedger(ctx context.Context) error {
	snaps, err := e.ledger.LoadAuctions(ctx)
	if err != nil {
		return fmt.Errorf("load auctions: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, snap := range snaps {
		a, err := auctionFromSnapshot(snap)
		if err != nil {
			return fmt.Errorf("restore auction %d: %w", snap.ID, err)
		}
		e.auctions[a.ID] = a
		if a.ID >= e.nextID {
			e.nextID = a.ID + 1
		}
	}
	e.log.Info().Int("auctions", len(snaps)).Msg("auctions restored from ledger")
	return nil
}

func auctionFromSnapshot(snap *domain.AuctionSnapshot) (*auction, error) {
	reserveKey, err := domain.EncodeOrder(snap.Reserve)
	if err != nil {
		return nil, err
	}
	a := &auction{
		ID:               snap.ID,
		Asset:            snap.Asset,
		Payment:          snap.Payment,
		EndTime:          snap.EndTime,
		Reserve:          snap.Reserve,
		ReserveKey:       reserveKey,
		Queue:            NewOrderQueue(),
		Clearing:         snap.Clearing,
		SoldAsset:        snap.SoldAsset,
		CollectedPayment: snap.CollectedPayment,
		claimed:          make(map[domain.OrderKey]bool, len(snap.ClaimedOrders)),
		reserveClaimed:   snap.ReserveClaimed,
	}
	hint := QueueStart
	for _, o := range snap.Orders {
		key, err := domain.EncodeOrder(o)
		if err != nil {
			return nil, err
		}
		if _, err := a.Queue.Insert(key, hint); err != nil {
			return nil, err
		}
		hint = key
	}
	for _, k := range snap.ClaimedOrders {
		a.claimed[k] = true
	}
	return a, nil
}

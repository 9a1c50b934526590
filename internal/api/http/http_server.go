package http

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evlasova/batch-auction/internal/api/dto"
	"github.com/evlasova/batch-auction/internal/core"
	"github.com/evlasova/batch-auction/internal/domain"
	"github.com/evlasova/batch-auction/internal/middleware"
)

type HTTPServer struct {
	Eng         *core.Engine
	rateLimit   time.Duration
	submittedID sync.Map // for deduplication by RequestID
}

func NewHTTPServer(eng *core.Engine, rateLimit time.Duration) *HTTPServer {
	return &HTTPServer{Eng: eng, rateLimit: rateLimit}
}

func (s *HTTPServer) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *HTTPServer) Router() *gin.Engine {
	r := gin.Default()

	r.Use(middleware.RequestID())
	rl := middleware.NewRateLimiter(s.rateLimit)
	r.Use(rl.Middleware())

	r.POST("/auctions", s.initiateAuction)
	r.GET("/auctions/:id", s.getAuction)
	r.POST("/auctions/:id/orders", s.placeBidOrders)
	r.GET("/auctions/:id/clearing-price", s.calculateClearingPrice)
	r.POST("/auctions/:id/clearing", s.computeClearingPrice)
	r.POST("/auctions/:id/claims/reserve", s.claimReserveOrder)
	r.POST("/auctions/:id/claims/orders", s.claimBidOrders)

	return r
}

func (s *HTTPServer) initiateAuction(c *gin.Context) {
	var req dto.InitiateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DurationSeconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds must be > 0"})
		return
	}

	// deduplication
	if req.RequestID != "" {
		if _, exists := s.submittedID.LoadOrStore(req.RequestID, struct{}{}); exists {
			c.JSON(http.StatusOK, dto.InitiateAuctionResponse{Message: "duplicate request"})
			return
		}
	}

	id, err := s.Eng.InitiateAuction(c.Request.Context(),
		req.Auctioneer, req.Asset, req.Payment,
		time.Duration(req.DurationSeconds)*time.Second,
		req.Supply, req.MinPayment)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.InitiateAuctionResponse{AuctionID: id})
}

func (s *HTTPServer) placeBidOrders(c *gin.Context) {
	auctionID, ok := auctionParam(c)
	if !ok {
		return
	}
	var req dto.PlaceBidOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hints := make([]domain.OrderKey, len(req.PositionHints))
	for i, h := range req.PositionHints {
		if h == "" {
			continue
		}
		parsed, err := domain.ParseOrderKey(h)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		hints[i] = parsed
	}

	// deduplication
	if req.RequestID != "" {
		if _, exists := s.submittedID.LoadOrStore(req.RequestID, struct{}{}); exists {
			c.JSON(http.StatusOK, dto.PlaceBidOrdersResponse{Message: "duplicate request"})
			return
		}
	}

	ownerID, keys, err := s.Eng.PlaceBidOrders(c.Request.Context(), req.Caller, auctionID, req.SellAmounts, req.BuyAmounts, hints)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.PlaceBidOrdersResponse{
		OwnerID:   ownerID,
		OrderKeys: convertKeys(keys),
	})
}

func (s *HTTPServer) calculateClearingPrice(c *gin.Context) {
	auctionID, ok := auctionParam(c)
	if !ok {
		return
	}
	res, err := s.Eng.CalculateClearingPrice(c.Request.Context(), auctionID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, convertClearing(res))
}

func (s *HTTPServer) computeClearingPrice(c *gin.Context) {
	auctionID, ok := auctionParam(c)
	if !ok {
		return
	}
	var req dto.ClearingPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.Eng.ComputeClearingPrice(c.Request.Context(), auctionID, req.Numerator, req.Denominator)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, convertClearing(res))
}

func (s *HTTPServer) claimReserveOrder(c *gin.Context) {
	auctionID, ok := auctionParam(c)
	if !ok {
		return
	}
	var req dto.ClaimReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unsold, collected, err := s.Eng.ClaimReserveOrder(c.Request.Context(), req.Caller, auctionID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ClaimReserveResponse{
		UnsoldAsset:      unsold,
		CollectedPayment: collected,
	})
}

func (s *HTTPServer) claimBidOrders(c *gin.Context) {
	auctionID, ok := auctionParam(c)
	if !ok {
		return
	}
	var req dto.ClaimBidOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	keys := make([]domain.OrderKey, len(req.OrderKeys))
	for i, k := range req.OrderKeys {
		parsed, err := domain.ParseOrderKey(k)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		keys[i] = parsed
	}

	claims, err := s.Eng.ClaimBidOrders(c.Request.Context(), req.Caller, auctionID, keys)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	res := dto.ClaimBidOrdersResponse{Claims: make([]dto.Claim, len(claims))}
	for i, cl := range claims {
		res.Claims[i] = dto.Claim{
			OrderKey:        cl.Key.String(),
			AssetReceived:   cl.AssetReceived,
			PaymentRefunded: cl.PaymentRefunded,
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) getAuction(c *gin.Context) {
	auctionID, ok := auctionParam(c)
	if !ok {
		return
	}
	snap, err := s.Eng.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	res := dto.GetAuctionResponse{
		Auction: dto.Auction{
			ID:               snap.ID,
			Asset:            snap.Asset,
			Payment:          snap.Payment,
			EndTime:          snap.EndTime,
			Status:           string(snap.Status),
			Reserve:          convertOrder(snap.Reserve),
			Orders:           convertOrders(snap.Orders),
			SoldAsset:        snap.SoldAsset,
			CollectedPayment: snap.CollectedPayment,
			ReserveClaimed:   snap.ReserveClaimed,
			Timestamp:        snap.Timestamp,
		},
	}
	if snap.Clearing != nil {
		cl := convertClearing(snap.Clearing)
		res.Clearing = &cl
	}
	c.JSON(http.StatusOK, res)
}

func auctionParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return 0, false
	}
	return id, true
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownAuction),
		errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotInBiddingPhase),
		errors.Is(err, domain.ErrNotYetFinished),
		errors.Is(err, domain.ErrAlreadyCleared),
		errors.Is(err, domain.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrOrderTooSmall),
		errors.Is(err, domain.ErrWorseThanReserve),
		errors.Is(err, domain.ErrInvalidPositionHint),
		errors.Is(err, domain.ErrInvalidClearingPrice),
		errors.Is(err, domain.ErrInvalidAuctionParams),
		errors.Is(err, domain.ErrMismatchedArguments):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func convertOrder(o domain.Order) dto.Order {
	return dto.Order{
		OwnerID:    o.OwnerID,
		SellAmount: o.SellAmount,
		BuyAmount:  o.BuyAmount,
	}
}

func convertOrders(orders []domain.Order) []dto.Order {
	res := make([]dto.Order, len(orders))
	for i, o := range orders {
		res[i] = convertOrder(o)
	}
	return res
}

func convertKeys(keys []domain.OrderKey) []string {
	res := make([]string, len(keys))
	for i, k := range keys {
		res[i] = k.String()
	}
	return res
}

func convertClearing(r *domain.ClearingResult) dto.ClearingPriceResponse {
	return dto.ClearingPriceResponse{
		MarginalOrderKey: r.Key.String(),
		PriceNumerator:   r.PriceNumerator,
		PriceDenominator: r.PriceDenominator,
		Volume:           r.Volume,
	}
}

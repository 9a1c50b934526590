package domain

import "errors"

var (
	// Lifecycle guards.
	ErrUnknownAuction    = errors.New("auction does not exist")
	ErrNotInBiddingPhase = errors.New("auction no longer in order placement phase")
	ErrNotYetFinished    = errors.New("auction not yet finished")
	ErrAlreadyCleared    = errors.New("clearing price already set")

	// Admission.
	ErrInvalidAmount    = errors.New("amount must be a positive integer below 2^96")
	ErrOrderTooSmall    = errors.New("order too small")
	ErrWorseThanReserve = errors.New("limit price not better than reserve")

	// Queue and clearing.
	ErrInvalidPositionHint  = errors.New("invalid position hint")
	ErrInvalidClearingPrice = errors.New("clearing price does not match a queue boundary")

	// Settlement.
	ErrAlreadyClaimed = errors.New("order already claimed")
	ErrNotOwner       = errors.New("caller does not own the order")
	ErrOrderNotFound  = errors.New("order not found in auction")

	// Collaborators.
	ErrTransferFailed = errors.New("token transfer failed")

	ErrInvalidAuctionParams = errors.New("invalid auction parameters")
	ErrMismatchedArguments  = errors.New("argument slices must have equal length")
)

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"errors"

	"github.com/luxfi/aggregator/fees"
)

// Decoding errors
var (
	ErrInvalidAction   = errors.New("invalid action")
	ErrIndexOutOfRange = errors.New("registry index out of range")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownSelector = errors.New("unknown method selector")
)

// Ledger errors
var (
	ErrInvalidPpm          = errors.New("ppm exceeds 1,000,000")
	ErrInsufficientBalance = errors.New("insufficient vault balance")
	ErrAssetNotFound       = errors.New("asset not found in vault")
	ErrNonFungibleDeposit  = errors.New("only fungible assets are accepted")
)

// Execution errors
var (
	ErrPrevAmountUnavailable   = errors.New("previous amount not available")
	ErrPrevAmountAssetMismatch = errors.New("previous amount asset mismatch")
	ErrZeroInputAmount         = errors.New("zero input amount")
	ErrMissingVenue            = errors.New("venue address required")
	ErrInvalidInputCount       = errors.New("invalid input count")
	ErrPoolAssetMismatch       = errors.New("inputs do not match pool assets")
	ErrUnexpectedVenueOutput   = errors.New("unexpected venue output")
	ErrInsufficientOutput      = errors.New("slippage limit exceeded")
	ErrReentrant               = errors.New("reentrancy detected")
	ErrOutOfGas                = errors.New("out of gas")
)

// Admin errors
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrReadOnly          = errors.New("cannot write in read-only mode")
	ErrFeeExceedsCeiling = fees.ErrFeeExceedsCeiling
	ErrReferralNotFound  = fees.ErrReferralNotFound
	ErrNotReferralOwner  = fees.ErrNotReferralOwner
)

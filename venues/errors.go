// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venues

import "errors"

var (
	ErrUnsupported           = errors.New("operation not supported by venue")
	ErrPairNotFound          = errors.New("pair not found")
	ErrPairExists            = errors.New("pair already exists")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrMarketNotFound        = errors.New("lending market not found")
	ErrAssetNotInPool        = errors.New("asset not in pool")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidInputs         = errors.New("invalid venue inputs")
	ErrInvalidPath           = errors.New("invalid swap path")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrSlippage              = errors.New("output below minimum")
	ErrRangeExhausted        = errors.New("pair address range exhausted")
)

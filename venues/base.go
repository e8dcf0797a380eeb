// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package venues simulates the liquidity venues a batch dispatches to:
// constant-product pairs, stable pools, a wrapper, liquid staking and money
// markets. Each venue serves the operations it supports and rejects the
// rest with ErrUnsupported.
package venues

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/aggregator/aggregator"
)

// unsupported rejects every venue operation. Venues embed it and override
// what they serve.
type unsupported struct{}

func reject(op string, call *aggregator.VenueCall) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupported, op, call.Venue.Hex())
}

func (unsupported) Swap(_ context.Context, c *aggregator.VenueCall) ([]aggregator.Payment, error) {
	return nil, reject("swap", c)
}

func (unsupported) AddLiquidity(_ context.Context, c *aggregator.VenueCall) ([]aggregator.Payment, error) {
	return nil, reject("addLiquidity", c)
}

func (unsupported) RemoveLiquidity(_ context.Context, c *aggregator.VenueCall) ([]aggregator.Payment, error) {
	return nil, reject("removeLiquidity", c)
}

func (unsupported) Wrap(_ context.Context, c *aggregator.VenueCall) ([]aggregator.Payment, error) {
	return nil, reject("wrap", c)
}

func (unsupported) Unwrap(_ context.Context, c *aggregator.VenueCall) ([]aggregator.Payment, error) {
	return nil, reject("unwrap", c)
}

func (unsupported) Stake(_ context.Context, c *aggregator.VenueCall) ([]aggregator.Payment, error) {
	return nil, reject("stake", c)
}

func (unsupported) Supply(_ context.Context, c *aggregator.VenueCall) ([]aggregator.Payment, error) {
	return nil, reject("supply", c)
}

func (unsupported) Redeem(_ context.Context, c *aggregator.VenueCall) ([]aggregator.Payment, error) {
	return nil, reject("redeem", c)
}

// singleInput returns the only input of a call
func singleInput(call *aggregator.VenueCall) (aggregator.Payment, error) {
	if len(call.Inputs) != 1 {
		return aggregator.Payment{}, fmt.Errorf("%w: want 1 input, got %d", ErrInvalidInputs, len(call.Inputs))
	}
	in := call.Inputs[0]
	if in.Nonce != 0 || in.Amount == nil || in.Amount.IsZero() {
		return aggregator.Payment{}, fmt.Errorf("%w: %s", ErrInvalidAmount, in)
	}
	return in, nil
}

// checkMin enforces the per-call floor
func checkMin(out, minOut *uint256.Int) error {
	if out.IsZero() || (minOut != nil && out.Lt(minOut)) {
		return fmt.Errorf("%w: got %s, want %s", ErrSlippage, out, minOut)
	}
	return nil
}

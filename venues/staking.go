// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venues

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/luxfi/aggregator/aggregator"
)

// LiquidStaking mints liquid shares against pooled stake. Rewards raise
// the stake backing each share.
type LiquidStaking struct {
	unsupported

	mu sync.Mutex

	Underlying aggregator.Currency
	Liquid     aggregator.Currency

	pooled *uint256.Int
	shares *uint256.Int
}

var _ aggregator.Venues = (*LiquidStaking)(nil)

// NewLiquidStaking returns an empty staking pool at a 1:1 rate
func NewLiquidStaking(underlying, liquid aggregator.Currency) *LiquidStaking {
	return &LiquidStaking{
		Underlying: underlying,
		Liquid:     liquid,
		pooled:     new(uint256.Int),
		shares:     new(uint256.Int),
	}
}

// AddRewards credits staking rewards to the pool
func (s *LiquidStaking) AddRewards(amount *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pooled.Add(s.pooled, amount)
}

// Rate returns pooled stake and share supply
func (s *LiquidStaking) Rate() (pooled, shares *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.pooled), new(uint256.Int).Set(s.shares)
}

// Stake mints shares = amount * shares / pooled, 1:1 while the pool is empty
func (s *LiquidStaking) Stake(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}
	if in.Currency != s.Underlying {
		return nil, fmt.Errorf("%w: stake takes %s, got %s", ErrInvalidInputs, s.Underlying, in.Currency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	minted := new(uint256.Int).Set(in.Amount)
	if !s.shares.IsZero() && !s.pooled.IsZero() {
		minted, _ = new(uint256.Int).MulDivOverflow(in.Amount, s.shares, s.pooled)
	}
	if err := checkMin(minted, call.MinOut); err != nil {
		return nil, err
	}
	s.pooled.Add(s.pooled, in.Amount)
	s.shares.Add(s.shares, minted)
	return []aggregator.Payment{aggregator.NewPayment(s.Liquid, minted)}, nil
}

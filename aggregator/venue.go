// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// VenueCall is one blocking request to an external venue.
// Inputs are transferred to the venue with the call; the returned payments
// are what the venue transferred back.
type VenueCall struct {
	Action Action
	Venue  common.Address
	Inputs []Payment

	// TokenOut is the requested output of swaps and lending supply
	TokenOut Currency
	// Path is the hop list for router swaps, input first
	Path []Currency
	// PairID selects the pair on router-style venues
	PairID uint16
	// OutputCount is the number of assets a stable pool returns
	OutputCount uint8
	// MinOut is the per-output floor the venue must honor
	MinOut *uint256.Int
}

// Venues performs venue operations, one method per operation family
type Venues interface {
	Swap(ctx context.Context, call *VenueCall) ([]Payment, error)
	AddLiquidity(ctx context.Context, call *VenueCall) ([]Payment, error)
	RemoveLiquidity(ctx context.Context, call *VenueCall) ([]Payment, error)
	Wrap(ctx context.Context, call *VenueCall) ([]Payment, error)
	Unwrap(ctx context.Context, call *VenueCall) ([]Payment, error)
	Stake(ctx context.Context, call *VenueCall) ([]Payment, error)
	Supply(ctx context.Context, call *VenueCall) ([]Payment, error)
	Redeem(ctx context.Context, call *VenueCall) ([]Payment, error)
}

// PoolInfo is the pool state the pre-swap solver prices against.
// Fee numerators share FeeDenom.
type PoolInfo struct {
	First         Currency
	Second        Currency
	ReserveFirst  *uint256.Int
	ReserveSecond *uint256.Int

	TotalFee   uint64
	SpecialFee uint64
	LPFee      uint64
	FeeDenom   uint64
}

// PoolReader is the read-only lookup service over venue-hosted state
type PoolReader interface {
	// PairAddress returns the constant-product pair trading a against b
	PairAddress(ctx context.Context, a, b Currency) (common.Address, error)
	// PoolInfo returns reserves and fee parameters of a zappable pool
	PoolInfo(ctx context.Context, action Action, pool common.Address, pairID uint16) (*PoolInfo, error)
	// LendingMarket returns the money market of a lending receipt token
	LendingMarket(ctx context.Context, receipt Currency) (common.Address, error)
}

// Dispatch routes a call to the Venues method of its operation family
func Dispatch(ctx context.Context, v Venues, call *VenueCall) ([]Payment, error) {
	switch call.Action.Op() {
	case OpSwap:
		return v.Swap(ctx, call)
	case OpAddLiquidity:
		return v.AddLiquidity(ctx, call)
	case OpRemoveLiquidity:
		return v.RemoveLiquidity(ctx, call)
	case OpWrap:
		return v.Wrap(ctx, call)
	case OpUnwrap:
		return v.Unwrap(ctx, call)
	case OpStake:
		return v.Stake(ctx, call)
	case OpSupply:
		return v.Supply(ctx, call)
	case OpRedeem:
		return v.Redeem(ctx, call)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, call.Action)
	}
}

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venues

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/aggregator/aggregator"
)

// StableFeeDenom is the denominator of stable pool fees
const StableFeeDenom = 10_000

// StablePool trades pegged assets at par less a fee and mints one LP token
// per unit deposited. The pool address doubles as its LP token.
type StablePool struct {
	unsupported

	mu sync.Mutex

	Address  common.Address
	Assets   []aggregator.Currency
	Balances []*uint256.Int
	LPSupply *uint256.Int
	Fee      uint64
}

var _ aggregator.Venues = (*StablePool)(nil)

// NewStablePool returns a pool seeded with balances, one per asset
func NewStablePool(addr common.Address, assets []aggregator.Currency, balances []*uint256.Int, fee uint64) (*StablePool, error) {
	if len(assets) < 2 || len(assets) != len(balances) {
		return nil, fmt.Errorf("%w: %d assets, %d balances", ErrInvalidInputs, len(assets), len(balances))
	}
	if fee >= StableFeeDenom {
		return nil, fmt.Errorf("%w: fee %d", ErrInvalidAmount, fee)
	}
	s := &StablePool{
		Address:  addr,
		Assets:   append([]aggregator.Currency(nil), assets...),
		Balances: make([]*uint256.Int, len(balances)),
		LPSupply: new(uint256.Int),
		Fee:      fee,
	}
	for i, b := range balances {
		s.Balances[i] = new(uint256.Int).Set(b)
		s.LPSupply.Add(s.LPSupply, b)
	}
	return s, nil
}

// LPToken returns the liquidity token of the pool
func (s *StablePool) LPToken() aggregator.Currency {
	return aggregator.NewCurrency(s.Address)
}

func (s *StablePool) index(c aggregator.Currency) (int, error) {
	for i, a := range s.Assets {
		if a == c {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s not in stable pool %s", ErrAssetNotInPool, c, s.Address.Hex())
}

// Swap trades at par less the fee. Without TokenOut a two-asset pool pays
// the other asset.
func (s *StablePool) Swap(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.index(in.Currency)
	if err != nil {
		return nil, err
	}
	tokenOut := call.TokenOut
	if tokenOut == (aggregator.Currency{}) && len(s.Assets) == 2 {
		tokenOut = s.Assets[1-i]
	}
	j, err := s.index(tokenOut)
	if err != nil {
		return nil, err
	}
	if i == j {
		return nil, fmt.Errorf("%w: %s into itself", ErrInvalidInputs, in.Currency)
	}

	out, _ := new(uint256.Int).MulDivOverflow(in.Amount, uint256.NewInt(StableFeeDenom-s.Fee), uint256.NewInt(StableFeeDenom))
	if !out.Lt(s.Balances[j]) {
		return nil, fmt.Errorf("%w: %s of %s held", ErrInsufficientLiquidity, out, s.Balances[j])
	}
	if err := checkMin(out, call.MinOut); err != nil {
		return nil, err
	}
	s.Balances[i].Add(s.Balances[i], in.Amount)
	s.Balances[j].Sub(s.Balances[j], out)
	return []aggregator.Payment{aggregator.NewPayment(tokenOut, out)}, nil
}

// AddLiquidity accepts any subset of the pool assets
func (s *StablePool) AddLiquidity(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	if len(call.Inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ErrInvalidInputs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// validate before crediting any balance
	idx := make([]int, len(call.Inputs))
	minted := new(uint256.Int)
	for k, in := range call.Inputs {
		i, err := s.index(in.Currency)
		if err != nil {
			return nil, err
		}
		idx[k] = i
		minted.Add(minted, in.Amount)
	}
	if err := checkMin(minted, call.MinOut); err != nil {
		return nil, err
	}
	for k, in := range call.Inputs {
		s.Balances[idx[k]].Add(s.Balances[idx[k]], in.Amount)
	}
	s.LPSupply.Add(s.LPSupply, minted)
	return []aggregator.Payment{aggregator.NewPayment(s.LPToken(), minted)}, nil
}

// RemoveLiquidity pays a pro-rata share of the first OutputCount assets.
// Zero means all of them.
func (s *StablePool) RemoveLiquidity(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}
	if in.Currency != s.LPToken() {
		return nil, fmt.Errorf("%w: %s is not the LP token", ErrAssetNotInPool, in.Currency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := int(call.OutputCount)
	if count == 0 {
		count = len(s.Assets)
	}
	if count > len(s.Assets) {
		return nil, fmt.Errorf("%w: %d outputs from %d assets", ErrInvalidInputs, count, len(s.Assets))
	}
	if !in.Amount.Lt(s.LPSupply) {
		return nil, fmt.Errorf("%w: burn %s of %s", ErrInvalidAmount, in.Amount, s.LPSupply)
	}

	// held balances of the paid assets back the burned share
	held := new(uint256.Int)
	for i := 0; i < count; i++ {
		held.Add(held, s.Balances[i])
	}
	denom := s.LPSupply
	if count < len(s.Assets) {
		if !in.Amount.Lt(held) {
			return nil, fmt.Errorf("%w: burn %s against %s held", ErrInsufficientLiquidity, in.Amount, held)
		}
		denom = held
	}
	out := make([]aggregator.Payment, count)
	for i := 0; i < count; i++ {
		share, _ := new(uint256.Int).MulDivOverflow(in.Amount, s.Balances[i], denom)
		if err := checkMin(share, call.MinOut); err != nil {
			return nil, err
		}
		out[i] = aggregator.NewPayment(s.Assets[i], share)
	}
	for i := range out {
		s.Balances[i].Sub(s.Balances[i], out[i].Amount)
	}
	s.LPSupply.Sub(s.LPSupply, in.Amount)
	return out, nil
}

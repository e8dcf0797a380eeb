// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/aggregator/aggregator/zap"
)

// preBalanceAddLiquidity swaps the excess side of a two-sided deposit so it
// matches the pool ratio, then provides liquidity in one call. Outputs other
// than the batch output asset are booked as protocol dust.
func (e *Engine) preBalanceAddLiquidity(
	ctx context.Context,
	vault *Vault,
	instr *Instruction,
	inputs []Payment,
	tokenOut Currency,
) error {
	if len(inputs) != 2 {
		return fmt.Errorf("%w: %s takes 2 inputs, got %d", ErrInvalidInputCount, instr.Action, len(inputs))
	}

	pool, err := e.resolvePool(ctx, instr, inputs)
	if err != nil {
		return err
	}
	info, err := e.pools.PoolInfo(ctx, instr.Action, pool, instr.PairID)
	if err != nil {
		return fmt.Errorf("read %s pool %s: %w", instr.Action, pool.Hex(), err)
	}
	first, second, err := orderByPool(info, inputs)
	if err != nil {
		return err
	}

	if err := e.meter.Consume(e.config.Gas.Solver, "solver"); err != nil {
		return err
	}
	fromFirst, amount := zap.ComputePreSwap(
		first.Amount.ToBig(),
		second.Amount.ToBig(),
		info.ReserveFirst.ToBig(),
		info.ReserveSecond.ToBig(),
		feeModel(instr.Action, info),
	)

	finalFirst := new(uint256.Int).Set(first.Amount)
	finalSecond := new(uint256.Int).Set(second.Amount)
	if amount.Sign() > 0 {
		// amount never exceeds the held balance of the swapped side
		swapAmount, _ := uint256.FromBig(amount)

		from, to := first, second
		if !fromFirst {
			from, to = second, first
		}
		received, err := e.preSwap(ctx, instr, pool, from.Currency, to.Currency, swapAmount)
		if err != nil {
			return err
		}
		if fromFirst {
			finalFirst.Sub(finalFirst, swapAmount)
			finalSecond.Add(finalSecond, received)
		} else {
			finalSecond.Sub(finalSecond, swapAmount)
			finalFirst.Add(finalFirst, received)
		}
		e.log.Debug("Pre-swap executed", "action", instr.Action, "pool", pool, "fromFirst", fromFirst, "amount", swapAmount, "received", received)
	}
	if finalFirst.IsZero() || finalSecond.IsZero() {
		return fmt.Errorf("%w: pre-balanced deposit %s/%s", ErrZeroInputAmount, finalFirst, finalSecond)
	}

	out, err := e.call(ctx, &VenueCall{
		Action: instr.Action,
		Venue:  pool,
		Inputs: []Payment{
			NewPayment(first.Currency, finalFirst),
			NewPayment(second.Currency, finalSecond),
		},
		PairID: instr.PairID,
		MinOut: e.minOut(instr.Action),
	})
	if err != nil {
		return err
	}

	for _, p := range nonZero(out) {
		if p.Currency == tokenOut {
			vault.Deposit(p.Currency, p.Amount)
			continue
		}
		if err := e.book.AccrueProtocol(p.Currency.Address, p.Amount); err != nil {
			return fmt.Errorf("book liquidity dust: %w", err)
		}
		e.log.Debug("Liquidity dust booked", "asset", p.Currency, "amount", p.Amount)
	}
	return nil
}

// preSwap swaps amount of from into to on the venue family of the
// liquidity action and returns what was received.
func (e *Engine) preSwap(
	ctx context.Context,
	instr *Instruction,
	pool common.Address,
	from, to Currency,
	amount *uint256.Int,
) (*uint256.Int, error) {
	call := &VenueCall{
		Action:   swapActionFor(instr.Action),
		Venue:    pool,
		Inputs:   []Payment{NewPayment(from, amount)},
		TokenOut: to,
		PairID:   instr.PairID,
		MinOut:   e.minOut(instr.Action),
	}
	if call.Action == OneDexSwap {
		call.Path = []Currency{from, to}
	}

	out, err := e.call(ctx, call)
	if err != nil {
		return nil, err
	}
	out = nonZero(out)
	if len(out) != 1 || out[0].Currency != to {
		return nil, fmt.Errorf("%w: pre-swap into %s returned %v", ErrUnexpectedVenueOutput, to, out)
	}
	return out[0].Amount, nil
}

// resolvePool finds the pool a zappable action deposits into
func (e *Engine) resolvePool(ctx context.Context, instr *Instruction, inputs []Payment) (common.Address, error) {
	var (
		pool common.Address
		err  error
	)
	switch instr.Action {
	case XExchangeAddLiquidity:
		pool, err = e.pools.PairAddress(ctx, inputs[0].Currency, inputs[1].Currency)
	case OneDexAddLiquidity:
		pool = e.config.Venues.OneDexRouter
	default:
		if instr.Venue != nil {
			pool = *instr.Venue
		}
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve %s pool: %w", instr.Action, err)
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrMissingVenue, instr.Action)
	}
	return pool, nil
}

// orderByPool returns the inputs in the pool's asset order
func orderByPool(info *PoolInfo, inputs []Payment) (Payment, Payment, error) {
	if info.ReserveFirst == nil || info.ReserveSecond == nil {
		return Payment{}, Payment{}, fmt.Errorf("%w: pool %s/%s has no reserves", ErrInvalidInput, info.First, info.Second)
	}
	a, b := inputs[0], inputs[1]
	switch {
	case a.Currency == info.First && b.Currency == info.Second:
		return a, b, nil
	case a.Currency == info.Second && b.Currency == info.First:
		return b, a, nil
	default:
		return Payment{}, Payment{}, fmt.Errorf("%w: got %s/%s, pool trades %s/%s",
			ErrPoolAssetMismatch, a.Currency, b.Currency, info.First, info.Second)
	}
}

// feeModel maps a venue's fee parameters onto the solver's fee models
func feeModel(a Action, info *PoolInfo) zap.FeeModel {
	if a == JexAddLiquidity {
		return zap.FeeModel{
			Mode:     zap.FeeOnOutput,
			FeeNum:   info.TotalFee,
			LPFeeNum: info.LPFee,
			FeeDenom: info.FeeDenom,
		}
	}
	return zap.FeeModel{
		Mode:          zap.FeeOnInput,
		FeeNum:        info.TotalFee,
		SpecialFeeNum: info.SpecialFee,
		FeeDenom:      info.FeeDenom,
	}
}

func swapActionFor(a Action) Action {
	switch a {
	case OneDexAddLiquidity:
		return OneDexSwap
	case JexAddLiquidity:
		return JexSwap
	default:
		return XExchangeSwap
	}
}

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
)

// FeeBook receives fee and dust accruals
type FeeBook interface {
	AccrueReferrer(id uint64, asset common.Address, amount *uint256.Int) error
	AccrueProtocol(asset common.Address, amount *uint256.Int) error
}

// Engine executes instructions against a ledger
type Engine struct {
	config *Config
	venues Venues
	pools  PoolReader
	book   FeeBook
	meter  *GasMeter
	log    log.Logger
}

// NewEngine creates an engine over the given collaborators
func NewEngine(config *Config, venues Venues, pools PoolReader, book FeeBook) *Engine {
	return &Engine{
		config: config,
		venues: venues,
		pools:  pools,
		book:   book,
		log:    log.New("module", "aggregator"),
	}
}

// WithMeter charges engine work to m
func (e *Engine) WithMeter(m *GasMeter) *Engine {
	e.meter = m
	return e
}

// WithLogger replaces the engine logger
func (e *Engine) WithLogger(l log.Logger) *Engine {
	e.log = l
	return e
}

// ExecuteInstruction withdraws the instruction's inputs, dispatches them to
// the venue and deposits the outputs. tokenOut is the batch output asset.
func (e *Engine) ExecuteInstruction(ctx context.Context, vault *Vault, instr *Instruction, tokenOut Currency) error {
	if !instr.Action.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAction, uint8(instr.Action))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.meter.Consume(e.config.Gas.Instruction, "instruction"); err != nil {
		return err
	}

	inputs, err := e.resolveInputs(vault, instr)
	if err != nil {
		return err
	}

	if instr.Action.Zappable() {
		return e.preBalanceAddLiquidity(ctx, vault, instr, inputs, tokenOut)
	}

	venue, err := e.resolveVenue(ctx, instr, inputs)
	if err != nil {
		return err
	}
	call := e.buildCall(instr, venue, inputs)

	out, err := e.call(ctx, call)
	if err != nil {
		return err
	}

	out = nonZero(out)
	for _, p := range out {
		vault.Deposit(p.Currency, p.Amount)
	}
	if len(out) == 1 {
		vault.SetPrevResult(out[0])
	}
	e.log.Trace("Instruction executed", "action", instr.Action, "venue", venue, "inputs", len(inputs), "outputs", len(out))
	return nil
}

// resolveInputs withdraws the payments an instruction sends to its venue
func (e *Engine) resolveInputs(vault *Vault, instr *Instruction) ([]Payment, error) {
	if len(instr.Inputs) == 0 {
		prev, ok := vault.PrevResult()
		if !ok {
			return nil, ErrPrevAmountUnavailable
		}
		if _, err := vault.Withdraw(prev.Currency, prev.Amount); err != nil {
			return nil, err
		}
		return []Payment{prev}, nil
	}

	payments := make([]Payment, 0, len(instr.Inputs))
	for _, in := range instr.Inputs {
		amount, err := withdrawMode(vault, in)
		if err != nil {
			return nil, err
		}
		if amount.IsZero() {
			return nil, fmt.Errorf("%w: asset=%s, mode=%s", ErrZeroInputAmount, in.Currency, in.Mode)
		}
		payments = append(payments, NewPayment(in.Currency, amount))
	}
	return payments, nil
}

func withdrawMode(vault *Vault, in InputArg) (*uint256.Int, error) {
	switch in.Mode.Kind {
	case ModeFixed:
		if in.Mode.Value == nil {
			return new(uint256.Int), nil
		}
		return vault.Withdraw(in.Currency, in.Mode.Value)
	case ModePpm:
		if in.Mode.Value == nil {
			return new(uint256.Int), nil
		}
		return vault.WithdrawPpm(in.Currency, in.Mode.Value)
	case ModeAll:
		return vault.WithdrawAll(in.Currency), nil
	case ModePrev:
		prev, ok := vault.PrevResult()
		if !ok {
			return nil, ErrPrevAmountUnavailable
		}
		if prev.Currency != in.Currency {
			return nil, fmt.Errorf("%w: want %s, previous %s", ErrPrevAmountAssetMismatch, in.Currency, prev.Currency)
		}
		return vault.Withdraw(in.Currency, prev.Amount)
	default:
		return nil, fmt.Errorf("%w: unknown amount mode %d", ErrInvalidInput, in.Mode.Kind)
	}
}

// resolveVenue finds the venue address for a direct dispatch
func (e *Engine) resolveVenue(ctx context.Context, instr *Instruction, inputs []Payment) (common.Address, error) {
	var (
		venue common.Address
		err   error
	)
	switch instr.Action {
	case XExchangeSwap:
		venue, err = e.pools.PairAddress(ctx, inputs[0].Currency, instr.TokenOut)
	case XExchangeAddLiquidity:
		if len(inputs) != 2 {
			return common.Address{}, fmt.Errorf("%w: %s takes 2 inputs, got %d", ErrInvalidInputCount, instr.Action, len(inputs))
		}
		venue, err = e.pools.PairAddress(ctx, inputs[0].Currency, inputs[1].Currency)
	case HatomRedeem:
		venue, err = e.pools.LendingMarket(ctx, inputs[0].Currency)
	case HatomSupply:
		venue, err = e.pools.LendingMarket(ctx, instr.TokenOut)
	default:
		if fixed, ok := e.config.Venues.venueFor(instr.Action); ok {
			venue = fixed
		} else if instr.Venue != nil {
			venue = *instr.Venue
		}
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve %s venue: %w", instr.Action, err)
	}
	if venue == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrMissingVenue, instr.Action)
	}
	return venue, nil
}

// buildCall assembles the direct venue call of an instruction
func (e *Engine) buildCall(instr *Instruction, venue common.Address, inputs []Payment) *VenueCall {
	call := &VenueCall{
		Action:      instr.Action,
		Venue:       venue,
		Inputs:      inputs,
		TokenOut:    instr.TokenOut,
		PairID:      instr.PairID,
		OutputCount: instr.OutputCount,
		MinOut:      e.minOut(instr.Action),
	}
	if instr.Action == OneDexSwap {
		call.Path = make([]Currency, 0, len(inputs)+1)
		for _, in := range inputs {
			call.Path = append(call.Path, in.Currency)
		}
		call.Path = append(call.Path, instr.TokenOut)
	}
	return call
}

// minOut is the internal sanity floor. The caller's slippage bound is
// enforced once on the batch output.
func (e *Engine) minOut(a Action) *uint256.Int {
	floor := uint256.NewInt(e.config.MinInternalOutput)
	if a.stable() {
		floor.Lsh(floor, 1)
	}
	return floor
}

// call performs one metered venue round-trip
func (e *Engine) call(ctx context.Context, call *VenueCall) ([]Payment, error) {
	if err := e.meter.Consume(e.config.Gas.VenueCall, call.Action.String()); err != nil {
		return nil, err
	}
	out, err := Dispatch(ctx, e.venues, call)
	if err != nil {
		return nil, fmt.Errorf("%s at %s: %w", call.Action, call.Venue.Hex(), err)
	}
	for _, p := range out {
		if p.Nonce != 0 {
			return nil, fmt.Errorf("%w: %s returned non-fungible %s", ErrUnexpectedVenueOutput, call.Action, p.Currency)
		}
	}
	return out, nil
}

func nonZero(payments []Payment) []Payment {
	out := payments[:0:0]
	for _, p := range payments {
		if p.Amount != nil && !p.Amount.IsZero() {
			out = append(out, p)
		}
	}
	return out
}
